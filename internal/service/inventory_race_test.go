package service

import (
	"context"
	"testing"
	"time"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/store/memory"
)

// interleavedRepo runs a hook once before the next inventory update or
// delete reaches the store, as if another request committed in between.
type interleavedRepo struct {
	*memory.Store
	beforeUpdate func()
	beforeDelete func()
}

func (r *interleavedRepo) UpdateInventoryItem(ctx context.Context, shopID string, itemID string, edit store.ItemEdit) (*domain.InventoryItem, error) {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook()
	}
	return r.Store.UpdateInventoryItem(ctx, shopID, itemID, edit)
}

func (r *interleavedRepo) DeleteInventoryItem(ctx context.Context, shopID string, itemID string, remove store.ItemRemoval) error {
	if hook := r.beforeDelete; hook != nil {
		r.beforeDelete = nil
		hook()
	}
	return r.Store.DeleteInventoryItem(ctx, shopID, itemID, remove)
}

func newInterleavedService(t *testing.T) (*Service, *interleavedRepo) {
	t.Helper()
	t.Setenv("SEED_EMPLOYEE_PASSWORD", "employee123")
	repo := &interleavedRepo{Store: memory.NewSeeded()}
	return New(repo, nil, nil, Settings{Location: time.UTC, PhoneRegion: "IN", SummaryTTL: time.Minute}), repo
}

func TestRenameKeepsStockSoldMeanwhile(t *testing.T) {
	svc, repo := newInterleavedService(t)
	ctx := ownerCtx()

	repo.beforeUpdate = func() {
		if _, err := svc.CreateBill(employeeCtx(), domain.BillCreateRequest{
			Items:        []domain.BillItemInput{{InventoryItemID: memory.SeedBricksID, Qty: 40}},
			PaymentSplit: domain.PaymentSplit{Cash: 400},
			CustomerName: "Walk-in",
		}); err != nil {
			t.Fatalf("create bill: %v", err)
		}
	}
	name := "Red Bricks"
	updated, err := svc.UpdateInventoryItem(ctx, memory.SeedBricksID, domain.InventoryItemUpdateRequest{ItemName: &name})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if updated.TotalStockUnits != 60 {
		t.Fatalf("expected 60 units after a bill of 40, got %v", updated.TotalStockUnits)
	}
	if got := stockOf(t, repo.Store, memory.SeedBricksID); got != 60 {
		t.Fatalf("expected stored stock 60, got %v", got)
	}
	if updated.CostPerUnit != 10 {
		t.Fatalf("expected cost per unit recomputed over 60 units, got %v", updated.CostPerUnit)
	}
}

func TestOverlappingLabourEditsAccrueOnce(t *testing.T) {
	svc, repo := newInterleavedService(t)
	ctx := ownerCtx()
	before := salaryDue(t, repo.Store, memory.SeedEmployeeID)
	labour := []domain.LabourDetailInput{{EmployeeID: memory.SeedEmployeeID, LabourCost: 30}}

	repo.beforeUpdate = func() {
		if _, err := svc.UpdateInventoryItem(ctx, memory.SeedTilesID, domain.InventoryItemUpdateRequest{LabourDetails: &labour}); err != nil {
			t.Fatalf("first edit: %v", err)
		}
	}
	item, err := svc.UpdateInventoryItem(ctx, memory.SeedTilesID, domain.InventoryItemUpdateRequest{LabourDetails: &labour})
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if item.CostOfLabour != 30 {
		t.Fatalf("expected item labour 30, got %v", item.CostOfLabour)
	}
	if got := salaryDue(t, repo.Store, memory.SeedEmployeeID); got != before+30 {
		t.Fatalf("expected salary due %v to track item labour, got %v", before+30, got)
	}
}

func TestDeleteReversesLabourAddedMeanwhile(t *testing.T) {
	svc, repo := newInterleavedService(t)
	ctx := ownerCtx()
	before := salaryDue(t, repo.Store, memory.SeedEmployeeID)
	labour := []domain.LabourDetailInput{{EmployeeID: memory.SeedEmployeeID, LabourCost: 45}}

	repo.beforeDelete = func() {
		if _, err := svc.UpdateInventoryItem(ctx, memory.SeedTilesID, domain.InventoryItemUpdateRequest{LabourDetails: &labour}); err != nil {
			t.Fatalf("edit: %v", err)
		}
	}
	if err := svc.DeleteInventoryItem(ctx, memory.SeedTilesID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := salaryDue(t, repo.Store, memory.SeedEmployeeID); got != before {
		t.Fatalf("expected salary due back to %v once the item is gone, got %v", before, got)
	}
}
