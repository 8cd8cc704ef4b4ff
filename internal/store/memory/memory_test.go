package memory

import (
	"context"
	"testing"

	"github.com/vivekyadav247/billmngapp-backend/internal/store/storetest"
)

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestSeededStoreHasDemoShop(t *testing.T) {
	t.Setenv("SEED_EMPLOYEE_PASSWORD", "employee123")
	s := NewSeeded()
	ctx := context.Background()

	shop, err := s.GetShopByCode(ctx, SeedShopCode)
	if err != nil {
		t.Fatalf("get seed shop: %v", err)
	}
	if shop.ID != SeedShopID {
		t.Fatalf("expected %s, got %s", SeedShopID, shop.ID)
	}

	employee, err := s.GetEmployeeByCode(ctx, SeedShopID, SeedEmployeeCode)
	if err != nil {
		t.Fatalf("get seed employee: %v", err)
	}
	if employee.PasswordHash == "" || !employee.IsActive {
		t.Fatalf("expected active seed employee with password, got %+v", employee)
	}

	items, err := s.ListInventoryItems(ctx, SeedShopID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 seed items, got %d", len(items))
	}
}
