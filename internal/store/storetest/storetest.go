// Package storetest holds behaviour every store.Repository backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vivekyadav247/billmngapp-backend/internal/costing"
	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/xid"
)

// Fixture is a freshly created shop with one owner, one employee and one
// inventory item in stock.
type Fixture struct {
	Shop     domain.Shop
	Owner    domain.User
	Employee domain.User
	Item     domain.InventoryItem
}

const fixtureStock = 10

func NewFixture(t *testing.T, repo store.Repository) Fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	ownerID := xid.New()
	owner, err := repo.CreateUser(ctx, domain.User{
		ID:        ownerID,
		Role:      domain.RoleOwner,
		Name:      "Fixture Owner",
		Email:     ownerID + "@fixture.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}

	shop, err := repo.CreateShop(ctx, domain.Shop{
		ID:          xid.New(),
		Code:        xid.ShopCode(),
		Name:        "Fixture Shop",
		Type:        "hardware",
		GSTNumber:   "GST-" + ownerID,
		OwnerID:     owner.ID,
		OwnerMobile: "+919876543210",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}

	employee, err := repo.CreateUser(ctx, domain.User{
		ID:         xid.New(),
		Role:       domain.RoleEmployee,
		Name:       "Fixture Employee",
		ShopID:     shop.ID,
		EmployeeID: xid.EmployeeID(),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}

	item, err := repo.CreateInventoryItem(ctx, domain.InventoryItem{
		ID:                       xid.New(),
		ShopID:                   shop.ID,
		ItemName:                 "Cement",
		TotalStockUnits:          fixtureStock,
		MaterialCost:             80,
		TotalCost:                80,
		CostPerUnit:              8,
		ProfitPerUnit:            2,
		FinalSellingPricePerUnit: 10,
		LabourDetails:            []domain.LabourDetail{},
		CreatedBy:                owner.ID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}, store.LabourAccrual{})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	return Fixture{Shop: *shop, Owner: *owner, Employee: *employee, Item: *item}
}

// Bill builds a bill unit taking qty of the fixture item, with udhar
// opening a credit entry.
func (f Fixture) Bill(qty float64, udhar float64) store.BillUnit {
	now := time.Now().UTC().Truncate(time.Millisecond)
	total := qty * f.Item.FinalSellingPricePerUnit
	bill := domain.Bill{
		ID:           xid.New(),
		ShopID:       f.Shop.ID,
		BillNumber:   xid.BillNumber(now),
		TotalAmount:  total,
		PaymentMode:  domain.PaymentFullCash,
		PaymentSplit: domain.PaymentSplit{Cash: total - udhar, Udhar: udhar},
		CustomerName: "Walk In",
		CreatedBy:    f.Owner.ID,
		CreatedAt:    now,
		Items: []domain.BillLineItem{{
			ID:              xid.New(),
			ShopID:          f.Shop.ID,
			InventoryItemID: f.Item.ID,
			Name:            f.Item.ItemName,
			Qty:             qty,
			Rate:            f.Item.FinalSellingPricePerUnit,
			Subtotal:        total,
			CreatedAt:       now,
		}},
	}
	unit := store.BillUnit{Bill: bill, Deductions: map[string]float64{f.Item.ID: qty}}
	if udhar > 0 {
		bill.CustomerMobile = "+919876543210"
		unit.Bill = bill
		unit.Credit = &domain.CreditEntry{
			ID:             xid.New(),
			ShopID:         f.Shop.ID,
			BillID:         bill.ID,
			BillNumber:     bill.BillNumber,
			CustomerName:   bill.CustomerName,
			CustomerMobile: bill.CustomerMobile,
			OriginalAmount: udhar,
			PendingAmount:  udhar,
			Payments:       []domain.CreditPayment{},
			Status:         domain.CreditPending,
			CreatedBy:      f.Owner.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return unit
}

// Run exercises the guarantees every backend has to give.
func Run(t *testing.T, repo store.Repository) {
	t.Run("ConcurrentBillsNeverOversell", func(t *testing.T) { concurrentBills(t, repo) })
	t.Run("FailedBillLeavesNothingBehind", func(t *testing.T) { failedBill(t, repo) })
	t.Run("ConcurrentCreditPayments", func(t *testing.T) { concurrentPayments(t, repo) })
	t.Run("SalaryDueNeverNegative", func(t *testing.T) { salaryClamp(t, repo) })
	t.Run("LabourAccrualTravelsWithItem", func(t *testing.T) { labourAccrual(t, repo) })
	t.Run("UpdateDoesNotRestoreSoldStock", func(t *testing.T) { updateKeepsSoldStock(t, repo) })
	t.Run("ConcurrentLabourEditsAccrueOnce", func(t *testing.T) { concurrentLabourEdits(t, repo) })
	t.Run("DeleteRacingEditsLeavesNoAccrual", func(t *testing.T) { deleteRacingEdits(t, repo) })
	t.Run("InventoryLimit", func(t *testing.T) { inventoryLimit(t, repo) })
	t.Run("DuplicateCodesAreReported", func(t *testing.T) { duplicateCodes(t, repo) })
}

func concurrentBills(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateBill(ctx, f.Bill(3, 0))
			if err != nil && !errors.Is(err, store.ErrInsufficientStock) {
				t.Errorf("unexpected bill error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected 3 bills to fit in stock of %d, got %d", fixtureStock, succeeded)
	}
	item, err := repo.GetInventoryItem(ctx, f.Shop.ID, f.Item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.TotalStockUnits != 1 {
		t.Fatalf("expected 1 unit left, got %v", item.TotalStockUnits)
	}
	bills, err := repo.ListBills(ctx, store.BillFilter{ShopID: f.Shop.ID})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != succeeded {
		t.Fatalf("expected %d stored bills, got %d", succeeded, len(bills))
	}
	if len(bills[0].Items) != 1 || bills[0].Items[0].BillID != bills[0].ID {
		t.Fatalf("expected hydrated line items, got %+v", bills[0].Items)
	}
}

func failedBill(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	unit := f.Bill(fixtureStock+1, 20)
	if _, err := repo.CreateBill(ctx, unit); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if _, err := repo.GetBill(ctx, f.Shop.ID, unit.Bill.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no bill, got %v", err)
	}
	credits, err := repo.ListCredits(ctx, store.CreditFilter{ShopID: f.Shop.ID})
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(credits) != 0 {
		t.Fatalf("expected no credit entries, got %d", len(credits))
	}
	totals, err := repo.SalesTotals(ctx, f.Shop.ID, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sales totals: %v", err)
	}
	if totals.Bills != 0 {
		t.Fatalf("expected no bills in totals, got %d", totals.Bills)
	}
}

func concurrentPayments(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	unit := f.Bill(5, 50)
	if _, err := repo.CreateBill(ctx, unit); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	paid := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.PayCredit(ctx, f.Shop.ID, unit.Credit.ID, domain.CreditPayment{
				Amount:    10,
				Mode:      domain.CreditModeCash,
				CreatedBy: f.Owner.ID,
				CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
			})
			switch {
			case err == nil:
				mu.Lock()
				paid++
				mu.Unlock()
			case errors.Is(err, store.ErrCreditNotPayable), errors.Is(err, store.ErrValidation):
			default:
				t.Errorf("unexpected payment error: %v", err)
			}
		}()
	}
	wg.Wait()

	if paid != 5 {
		t.Fatalf("expected 5 payments of 10 to settle 50, got %d", paid)
	}
	entries, err := repo.ListCredits(ctx, store.CreditFilter{ShopID: f.Shop.ID})
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 credit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Status != domain.CreditSettled || entry.PendingAmount != 0 || entry.SettledAmount != 50 || len(entry.Payments) != 5 {
		t.Fatalf("unexpected settled entry: %+v", entry)
	}
}

func salaryClamp(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	user, err := repo.AdjustSalaryDue(ctx, f.Shop.ID, f.Employee.ID, 100, &domain.SalaryEntry{
		ID:            xid.New(),
		ShopID:        f.Shop.ID,
		EmployeeID:    f.Employee.ID,
		Amount:        100,
		Type:          domain.SalaryTypeManual,
		Period:        domain.SalaryPeriodMonth,
		EffectiveDate: now,
		CreatedBy:     f.Owner.ID,
		CreatedAt:     now,
	})
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if user.SalaryDue != 100 {
		t.Fatalf("expected due 100, got %v", user.SalaryDue)
	}

	user, err = repo.AdjustSalaryDue(ctx, f.Shop.ID, f.Employee.ID, -150, nil)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if user.SalaryDue != 0 {
		t.Fatalf("expected due clamped to 0, got %v", user.SalaryDue)
	}

	if _, err := repo.AdjustSalaryDue(ctx, f.Shop.ID, f.Owner.ID, 10, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected owner to be rejected as employee, got %v", err)
	}

	entries, err := repo.ListSalaryEntries(ctx, f.Shop.ID, f.Employee.ID, 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != 100 {
		t.Fatalf("expected one manual entry, got %+v", entries)
	}
}

func labourAccrual(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	item := f.Item
	item.ID = xid.New()
	item.ItemName = "Sand"
	item.LabourDetails = []domain.LabourDetail{{EmployeeID: f.Employee.ID, LabourCost: 25}}
	created, err := repo.CreateInventoryItem(ctx, item, store.LabourAccrual{
		Entries: []domain.LabourDetail{{EmployeeID: f.Employee.ID, LabourCost: 25}},
		Audit: []domain.SalaryEntry{{
			ID:            xid.New(),
			ShopID:        f.Shop.ID,
			EmployeeID:    f.Employee.ID,
			Amount:        25,
			Type:          domain.SalaryTypeLabour,
			Period:        domain.SalaryPeriodLabour,
			EffectiveDate: now,
			CreatedBy:     f.Owner.ID,
			CreatedAt:     now,
		}},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if len(created.LabourDetails) != 1 || created.LabourDetails[0].LabourCost != 25 {
		t.Fatalf("expected labour details to round trip, got %+v", created.LabourDetails)
	}

	employee, err := repo.GetUser(ctx, f.Employee.ID)
	if err != nil {
		t.Fatalf("get employee: %v", err)
	}
	if employee.SalaryDue != 25 {
		t.Fatalf("expected due 25, got %v", employee.SalaryDue)
	}

	if err := repo.DeleteInventoryItem(ctx, f.Shop.ID, created.ID, reverseLabour); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	employee, err = repo.GetUser(ctx, f.Employee.ID)
	if err != nil {
		t.Fatalf("get employee: %v", err)
	}
	if employee.SalaryDue != 0 {
		t.Fatalf("expected due reversed to 0, got %v", employee.SalaryDue)
	}

	totals, err := repo.SalaryTotals(ctx, f.Shop.ID, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("salary totals: %v", err)
	}
	if totals.LabourAccrual != 25 || totals.ManualSalary != 0 {
		t.Fatalf("unexpected salary totals: %+v", totals)
	}
}

func inventoryLimit(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	for i := 1; i < store.MaxInventoryItemsPerShop; i++ {
		item := f.Item
		item.ID = xid.New()
		if _, err := repo.CreateInventoryItem(ctx, item, store.LabourAccrual{}); err != nil {
			t.Fatalf("create item %d: %v", i, err)
		}
	}
	item := f.Item
	item.ID = xid.New()
	if _, err := repo.CreateInventoryItem(ctx, item, store.LabourAccrual{}); !errors.Is(err, store.ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
}

func duplicateCodes(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := repo.CreateUser(ctx, domain.User{
		ID:         xid.New(),
		Role:       domain.RoleEmployee,
		Name:       "Clash",
		ShopID:     f.Shop.ID,
		EmployeeID: f.Employee.EmployeeID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if !errors.Is(err, store.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode for employee id, got %v", err)
	}

	_, err = repo.CreateUser(ctx, domain.User{
		ID:        xid.New(),
		Role:      domain.RoleOwner,
		Name:      "Clash",
		Email:     f.Owner.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for email, got %v", err)
	}
}

// relabel sets the item's labour and accrues the change against the row the
// backend hands over.
func relabel(labour []domain.LabourDetail) store.ItemEdit {
	return func(stored domain.InventoryItem) (domain.InventoryItem, store.LabourAccrual, error) {
		item := stored
		item.LabourDetails = labour
		item.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
		return item, store.LabourAccrual{Entries: costing.LabourDelta(stored.LabourDetails, labour)}, nil
	}
}

func rename(name string) store.ItemEdit {
	return func(stored domain.InventoryItem) (domain.InventoryItem, store.LabourAccrual, error) {
		item := stored
		item.ItemName = name
		item.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
		return item, store.LabourAccrual{}, nil
	}
}

func reverseLabour(stored domain.InventoryItem) store.LabourAccrual {
	return store.LabourAccrual{Entries: costing.Scale(stored.LabourDetails, -1)}
}

func salaryDue(t *testing.T, repo store.Repository, userID string) float64 {
	t.Helper()
	user, err := repo.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return user.SalaryDue
}

func updateKeepsSoldStock(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	if _, err := repo.CreateBill(ctx, f.Bill(4, 0)); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	var seen float64
	updated, err := repo.UpdateInventoryItem(ctx, f.Shop.ID, f.Item.ID, func(stored domain.InventoryItem) (domain.InventoryItem, store.LabourAccrual, error) {
		seen = stored.TotalStockUnits
		return rename("Cement Grade A")(stored)
	})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if seen != fixtureStock-4 || updated.TotalStockUnits != fixtureStock-4 {
		t.Fatalf("expected edit to see and keep %d units, saw %v kept %v", fixtureStock-4, seen, updated.TotalStockUnits)
	}

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := repo.CreateBill(ctx, f.Bill(1, 0)); err != nil {
				t.Errorf("bill: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := repo.UpdateInventoryItem(ctx, f.Shop.ID, f.Item.ID, rename("Cement")); err != nil {
				t.Errorf("rename: %v", err)
			}
		}()
	}
	wg.Wait()

	item, err := repo.GetInventoryItem(ctx, f.Shop.ID, f.Item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.TotalStockUnits != fixtureStock-4-workers {
		t.Fatalf("expected %d units after bills and renames, got %v", fixtureStock-4-workers, item.TotalStockUnits)
	}
}

func concurrentLabourEdits(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()
	labour := []domain.LabourDetail{{EmployeeID: f.Employee.ID, LabourCost: 30}}

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.UpdateInventoryItem(ctx, f.Shop.ID, f.Item.ID, relabel(labour)); err != nil {
				t.Errorf("relabel: %v", err)
			}
		}()
	}
	wg.Wait()

	item, err := repo.GetInventoryItem(ctx, f.Shop.ID, f.Item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if len(item.LabourDetails) != 1 || item.LabourDetails[0].LabourCost != 30 {
		t.Fatalf("unexpected labour %+v", item.LabourDetails)
	}
	if due := salaryDue(t, repo, f.Employee.ID); due != 30 {
		t.Fatalf("expected salary due 30 to match item labour, got %v", due)
	}
}

func deleteRacingEdits(t *testing.T, repo store.Repository) {
	f := NewFixture(t, repo)
	ctx := context.Background()

	if _, err := repo.UpdateInventoryItem(ctx, f.Shop.ID, f.Item.ID, relabel([]domain.LabourDetail{{EmployeeID: f.Employee.ID, LabourCost: 20}})); err != nil {
		t.Fatalf("relabel: %v", err)
	}

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(cost float64) {
			defer wg.Done()
			_, err := repo.UpdateInventoryItem(ctx, f.Shop.ID, f.Item.ID, relabel([]domain.LabourDetail{{EmployeeID: f.Employee.ID, LabourCost: cost}}))
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				t.Errorf("relabel: %v", err)
			}
		}(float64(30 + 10*i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := repo.DeleteInventoryItem(ctx, f.Shop.ID, f.Item.ID, reverseLabour); err != nil {
			t.Errorf("delete: %v", err)
		}
	}()
	wg.Wait()

	if _, err := repo.GetInventoryItem(ctx, f.Shop.ID, f.Item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected item to be gone, got %v", err)
	}
	if due := salaryDue(t, repo, f.Employee.ID); due != 0 {
		t.Fatalf("expected every accrual reversed with the item, got salary due %v", due)
	}
}
