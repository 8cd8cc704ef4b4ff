package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	t.Setenv("SEED_EMPLOYEE_PASSWORD", "employee123")
	repo := memory.NewSeeded()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return New(repo, nil, nil, Settings{Location: loc, PhoneRegion: "IN", SummaryTTL: time.Minute}), repo
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID: memory.SeedOwnerID,
		Role:   domain.RoleOwner,
		ShopID: memory.SeedShopID,
		Email:  memory.SeedOwnerEmail,
	})
}

func employeeCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID: memory.SeedEmployeeID,
		Role:   domain.RoleEmployee,
		ShopID: memory.SeedShopID,
	})
}

func salaryDue(t *testing.T, repo *memory.Store, userID string) float64 {
	t.Helper()
	user, err := repo.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user %s: %v", userID, err)
	}
	return user.SalaryDue
}

func stockOf(t *testing.T, repo *memory.Store, itemID string) float64 {
	t.Helper()
	item, err := repo.GetInventoryItem(context.Background(), memory.SeedShopID, itemID)
	if err != nil {
		t.Fatalf("get item %s: %v", itemID, err)
	}
	return item.TotalStockUnits
}

func TestCreateBillManualFullCash(t *testing.T) {
	svc, repo := newTestService(t)

	bill, err := svc.CreateBill(employeeCtx(), domain.BillCreateRequest{
		Items:        []domain.BillItemInput{{ManualItem: true, Name: "Tea", Qty: 2, Rate: 10}},
		PaymentSplit: domain.PaymentSplit{Cash: 20},
		CustomerName: "Walk-in",
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.TotalAmount != 20 || bill.Items[0].Subtotal != 20 {
		t.Fatalf("expected total and subtotal 20, got %+v", bill)
	}
	if bill.PaymentMode != domain.PaymentFullCash {
		t.Fatalf("expected FULL_CASH, got %s", bill.PaymentMode)
	}
	if !bill.Items[0].ManualItem || bill.Items[0].BillID != bill.ID {
		t.Fatalf("expected manual line bound to bill, got %+v", bill.Items[0])
	}
	if bill.CreatedBy != memory.SeedEmployeeID {
		t.Fatalf("expected bill created by employee, got %s", bill.CreatedBy)
	}

	credits, err := repo.ListCredits(context.Background(), store.CreditFilter{ShopID: memory.SeedShopID})
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(credits) != 0 {
		t.Fatalf("expected no credit entry, got %d", len(credits))
	}
}

func TestCreateBillWithoutUdharIgnoresMobile(t *testing.T) {
	svc, _ := newTestService(t)

	bill, err := svc.CreateBill(employeeCtx(), domain.BillCreateRequest{
		Items:          []domain.BillItemInput{{ManualItem: true, Name: "Tea", Qty: 1, Rate: 10}},
		PaymentSplit:   domain.PaymentSplit{Online: 10},
		CustomerName:   "Walk-in",
		CustomerMobile: "12",
	})
	if err != nil {
		t.Fatalf("expected malformed mobile to be ignored without udhar, got %v", err)
	}
	if bill.CustomerMobile != "" {
		t.Fatalf("expected no mobile stored on a paid bill, got %q", bill.CustomerMobile)
	}
}

func TestCreateBillHybridOpensCredit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerCtx()

	bill, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Items:          []domain.BillItemInput{{Name: "Cement bag", Qty: 4, Rate: 25}},
		PaymentSplit:   domain.PaymentSplit{Cash: 40, Udhar: 60},
		CustomerName:   "Mohan",
		CustomerMobile: "98765 43210",
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.PaymentMode != domain.PaymentHybrid {
		t.Fatalf("expected HYBRID, got %s", bill.PaymentMode)
	}
	if bill.CustomerMobile != "+919876543210" {
		t.Fatalf("expected normalised mobile, got %q", bill.CustomerMobile)
	}

	list, err := svc.ListCredits(ctx, domain.CreditListQuery{})
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("expected one credit entry, got %d", len(list.Entries))
	}
	entry := list.Entries[0]
	if entry.OriginalAmount != 60 || entry.PendingAmount != 60 || entry.SettledAmount != 0 || entry.Status != domain.CreditPending {
		t.Fatalf("unexpected credit entry %+v", entry)
	}
	if entry.BillID != bill.ID || entry.BillNumber != bill.BillNumber {
		t.Fatalf("credit entry not linked to bill: %+v", entry)
	}
}

func TestCreateBillRejectsWithoutWrites(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := ownerCtx()

	cases := []struct {
		name string
		req  domain.BillCreateRequest
	}{
		{
			name: "missing customer name",
			req: domain.BillCreateRequest{
				Items:        []domain.BillItemInput{{InventoryItemID: memory.SeedBricksID, Qty: 1}},
				PaymentSplit: domain.PaymentSplit{Cash: 10},
			},
		},
		{
			name: "split mismatch",
			req: domain.BillCreateRequest{
				Items:        []domain.BillItemInput{{InventoryItemID: memory.SeedBricksID, Qty: 2}},
				PaymentSplit: domain.PaymentSplit{Cash: 19.99},
				CustomerName: "A",
			},
		},
		{
			name: "udhar without mobile",
			req: domain.BillCreateRequest{
				Items:        []domain.BillItemInput{{InventoryItemID: memory.SeedBricksID, Qty: 2}},
				PaymentSplit: domain.PaymentSplit{Udhar: 20},
				CustomerName: "A",
			},
		},
		{
			name: "invalid mobile",
			req: domain.BillCreateRequest{
				Items:          []domain.BillItemInput{{InventoryItemID: memory.SeedBricksID, Qty: 2}},
				PaymentSplit:   domain.PaymentSplit{Udhar: 20},
				CustomerName:   "A",
				CustomerMobile: "12",
			},
		},
		{
			name: "more than stock",
			req: domain.BillCreateRequest{
				Items:        []domain.BillItemInput{{InventoryItemID: memory.SeedTilesID, Qty: 21}},
				PaymentSplit: domain.PaymentSplit{Cash: 525},
				CustomerName: "A",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBill(ctx, tc.req)
			if !errors.Is(err, store.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	bills, err := repo.ListBills(context.Background(), store.BillFilter{ShopID: memory.SeedShopID})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 0 {
		t.Fatalf("expected no bills persisted, got %d", len(bills))
	}
	if got := stockOf(t, repo, memory.SeedBricksID); got != 100 {
		t.Fatalf("expected bricks stock untouched, got %v", got)
	}
}

func TestCreateBillDeductsStockAndUsesItemPrice(t *testing.T) {
	svc, repo := newTestService(t)

	bill, err := svc.CreateBill(ownerCtx(), domain.BillCreateRequest{
		Items: []domain.BillItemInput{
			{InventoryItemID: memory.SeedBricksID, Qty: 30, Rate: 1, Fare: 15},
			{InventoryItemID: memory.SeedBricksID, Qty: 20},
			{Name: "Loading", Qty: 1, Rate: 50},
		},
		PaymentSplit: domain.PaymentSplit{Cash: 300, Online: 265},
		CustomerName: "Site 4",
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.Items[0].Rate != 10 || bill.Items[0].Subtotal != 315 {
		t.Fatalf("expected inventory rate 10 and subtotal 315, got %+v", bill.Items[0])
	}
	if bill.TotalAmount != 565 {
		t.Fatalf("expected total 565, got %v", bill.TotalAmount)
	}
	if got := stockOf(t, repo, memory.SeedBricksID); got != 50 {
		t.Fatalf("expected stock 50 after bill, got %v", got)
	}

	fetched, err := svc.GetBill(employeeCtx(), bill.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if len(fetched.Items) != 3 {
		t.Fatalf("expected 3 hydrated lines, got %d", len(fetched.Items))
	}
}

func TestConcurrentBillsNeverOversell(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := employeeCtx()

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateBill(ctx, domain.BillCreateRequest{
				Items:        []domain.BillItemInput{{InventoryItemID: memory.SeedTilesID, Qty: 3}},
				PaymentSplit: domain.PaymentSplit{Cash: 75},
				CustomerName: fmt.Sprintf("customer-%d", i),
			})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, store.ErrInsufficientStock) && !errors.Is(err, store.ErrValidation) {
			t.Fatalf("unexpected failure kind: %v", err)
		}
	}
	if successes != 6 {
		t.Fatalf("expected 6 successful bills for 20 units at 3 each, got %d", successes)
	}
	if got := stockOf(t, repo, memory.SeedTilesID); got != 2 {
		t.Fatalf("expected 2 units left, got %v", got)
	}
}

func TestPayCreditSettlesAndRejectsSecondPayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerCtx()

	if _, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Items:          []domain.BillItemInput{{Name: "Paint", Qty: 1, Rate: 100}},
		PaymentSplit:   domain.PaymentSplit{Cash: 40, Udhar: 60},
		CustomerName:   "Mohan",
		CustomerMobile: "9876543210",
	}); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	list, err := svc.ListCredits(ctx, domain.CreditListQuery{})
	if err != nil || len(list.Entries) != 1 {
		t.Fatalf("expected one pending entry, got %v err=%v", len(list.Entries), err)
	}
	creditID := list.Entries[0].ID

	if _, err := svc.PayCredit(ctx, creditID, domain.CreditPaymentRequest{Amount: 60.01, Mode: "cash"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected overpayment to fail validation, got %v", err)
	}
	if _, err := svc.PayCredit(ctx, creditID, domain.CreditPaymentRequest{Amount: 10, Mode: "card"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown mode to fail validation, got %v", err)
	}
	if _, err := svc.PayCredit(ctx, creditID, domain.CreditPaymentRequest{Amount: 10, Mode: "CASH"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected upper case mode to fail validation, got %v", err)
	}

	partial, err := svc.PayCredit(employeeCtx(), creditID, domain.CreditPaymentRequest{Amount: 25.5, Mode: "Online"})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if partial.PendingAmount != 34.5 || partial.SettledAmount != 25.5 || partial.Status != domain.CreditPending {
		t.Fatalf("unexpected entry after partial payment %+v", partial)
	}

	settled, err := svc.PayCredit(ctx, creditID, domain.CreditPaymentRequest{Amount: 34.5, Mode: "cash"})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if settled.PendingAmount != 0 || settled.SettledAmount != 60 || settled.Status != domain.CreditSettled {
		t.Fatalf("expected settled entry, got %+v", settled)
	}
	if settled.OriginalAmount != settled.SettledAmount+settled.PendingAmount {
		t.Fatalf("original amount must equal settled plus pending")
	}
	if len(settled.Payments) != 2 || settled.Payments[0].CreatedBy != memory.SeedEmployeeID {
		t.Fatalf("expected two payment records, got %+v", settled.Payments)
	}

	if _, err := svc.PayCredit(ctx, creditID, domain.CreditPaymentRequest{Amount: 1, Mode: "cash"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for settled entry, got %v", err)
	}

	byCustomer, err := svc.CreditsByCustomer(ctx, "+91 98765 43210")
	if err != nil {
		t.Fatalf("credits by customer: %v", err)
	}
	if len(byCustomer.Entries) != 1 || byCustomer.TotalPending != 0 {
		t.Fatalf("unexpected customer view %+v", byCustomer)
	}
}

func TestConcurrentCreditPaymentsDoNotLoseUpdates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerCtx()

	if _, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Items:          []domain.BillItemInput{{Name: "Pipes", Qty: 10, Rate: 10}},
		PaymentSplit:   domain.PaymentSplit{Udhar: 100},
		CustomerName:   "Contractor",
		CustomerMobile: "9876543211",
	}); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	list, _ := svc.ListCredits(ctx, domain.CreditListQuery{})
	creditID := list.Entries[0].ID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.PayCredit(ctx, creditID, domain.CreditPaymentRequest{Amount: 10, Mode: "cash"})
		}()
	}
	wg.Wait()

	all, err := svc.ListCredits(ctx, domain.CreditListQuery{Status: "pending"})
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(all.Entries) != 1 {
		t.Fatalf("expected entry still pending, got %d", len(all.Entries))
	}
	entry := all.Entries[0]
	if entry.PendingAmount != 20 || entry.SettledAmount != 80 || len(entry.Payments) != 8 {
		t.Fatalf("expected 8 payments of 10 applied, got %+v", entry)
	}
}

func TestInventoryLabourAccrualAndDeltaReversal(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := ownerCtx()

	item, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{
		ItemName:        "Bricks premium",
		TotalStockUnits: 10,
		MaterialCost:    100,
		FuelCost:        20,
		ProfitPerUnit:   5,
		LabourDetails:   []domain.LabourDetailInput{{EmployeeID: memory.SeedEmployeeID, LabourCost: 30}},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.CostOfLabour != 30 || item.TotalCost != 150 || item.CostPerUnit != 15 || item.FinalSellingPricePerUnit != 20 {
		t.Fatalf("unexpected costing %+v", item)
	}
	if item.LabourDetails[0].EmployeeName != "Ravi" {
		t.Fatalf("expected employee name populated, got %+v", item.LabourDetails)
	}
	if got := salaryDue(t, repo, memory.SeedEmployeeID); got != 30 {
		t.Fatalf("expected salary due 30, got %v", got)
	}
	entries, err := svc.ListSalaryEntries(ctx, memory.SeedEmployeeID, 0)
	if err != nil {
		t.Fatalf("list salary entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.SalaryTypeLabour || entries[0].Amount != 30 {
		t.Fatalf("expected one labour entry of 30, got %+v", entries)
	}

	none := []domain.LabourDetailInput{}
	updated, err := svc.UpdateInventoryItem(ctx, item.ID, domain.InventoryItemUpdateRequest{LabourDetails: &none})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.CostOfLabour != 0 || updated.CostPerUnit != 12 || updated.FinalSellingPricePerUnit != 17 {
		t.Fatalf("unexpected costing after update %+v", updated)
	}
	if got := salaryDue(t, repo, memory.SeedEmployeeID); got != 0 {
		t.Fatalf("expected salary due back to 0, got %v", got)
	}
	entries, _ = svc.ListSalaryEntries(ctx, memory.SeedEmployeeID, 0)
	if len(entries) != 1 {
		t.Fatalf("expected no audit entry for the reversal, got %d entries", len(entries))
	}
}

func TestInventoryUpdateAccruesOnlyDelta(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := ownerCtx()

	item, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{
		ItemName:        "Blocks",
		TotalStockUnits: 50,
		MaterialCost:    200,
		LabourDetails: []domain.LabourDetailInput{
			{EmployeeID: memory.SeedEmployeeID, LabourCost: 40},
			{EmployeeID: memory.SeedSecondEmployee, LabourCost: 10},
		},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	next := []domain.LabourDetailInput{
		{EmployeeID: memory.SeedEmployeeID, LabourCost: 55},
		{EmployeeID: memory.SeedSecondEmployee, LabourCost: 4},
	}
	stock := 60.0
	if _, err := svc.UpdateInventoryItem(ctx, item.ID, domain.InventoryItemUpdateRequest{LabourDetails: &next, TotalStockUnits: &stock}); err != nil {
		t.Fatalf("update item: %v", err)
	}
	if got := salaryDue(t, repo, memory.SeedEmployeeID); got != 55 {
		t.Fatalf("expected 55 due for first employee, got %v", got)
	}
	if got := salaryDue(t, repo, memory.SeedSecondEmployee); got != 4 {
		t.Fatalf("expected 4 due for second employee, got %v", got)
	}

	entries, _ := svc.ListSalaryEntries(ctx, memory.SeedEmployeeID, 0)
	if len(entries) != 2 || entries[0].Amount != 15 {
		t.Fatalf("expected a delta entry of 15 on top of the first 40, got %+v", entries)
	}

	if err := svc.DeleteInventoryItem(ctx, item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if got := salaryDue(t, repo, memory.SeedEmployeeID); got != 0 {
		t.Fatalf("expected delete to reverse labour, got %v", got)
	}
	if _, err := svc.GetInventoryItem(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted item to be gone, got %v", err)
	}
}

func TestInventoryRejectsUnknownLabourEmployee(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateInventoryItem(ownerCtx(), domain.InventoryItemCreateRequest{
		ItemName:        "Sand",
		TotalStockUnits: 5,
		LabourDetails:   []domain.LabourDetailInput{{EmployeeID: memory.SeedOwnerID, LabourCost: 5}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for non-employee labour, got %v", err)
	}
}

func TestInventoryLimitPerShop(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerCtx()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{
			ItemName:        fmt.Sprintf("Item %d", i),
			TotalStockUnits: 1,
		}); err != nil {
			t.Fatalf("create item %d: %v", i, err)
		}
	}
	_, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{ItemName: "Sixth", TotalStockUnits: 1})
	if !errors.Is(err, store.ErrLimitReached) {
		t.Fatalf("expected limit reached, got %v", err)
	}

	list, err := svc.ListInventoryItems(employeeCtx())
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(list.Items) != store.MaxInventoryItemsPerShop || list.Limit != store.MaxInventoryItemsPerShop {
		t.Fatalf("expected %d items, got %d", store.MaxInventoryItemsPerShop, len(list.Items))
	}
}

func TestInventoryWritesRequireOwner(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateInventoryItem(employeeCtx(), domain.InventoryItemCreateRequest{ItemName: "Gravel", TotalStockUnits: 3})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.DeleteInventoryItem(employeeCtx(), memory.SeedBricksID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if _, err := svc.ListInventoryItems(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated without actor, got %v", err)
	}
}

func TestSalaryAccrualAndPaymentClamp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerCtx()

	resp, err := svc.AddSalaryAccrual(ctx, memory.SeedEmployeeID, domain.SalaryAccrualRequest{Amount: 100.004})
	if err != nil {
		t.Fatalf("accrue salary: %v", err)
	}
	if resp.SalaryDue != 100 {
		t.Fatalf("expected due 100, got %v", resp.SalaryDue)
	}
	if _, err := svc.AddSalaryAccrual(ctx, memory.SeedEmployeeID, domain.SalaryAccrualRequest{Amount: 5, Period: "week"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected invalid period, got %v", err)
	}

	paid, err := svc.PayEmployee(ctx, memory.SeedEmployeeID, domain.SalaryPaymentRequest{Amount: 150})
	if err != nil {
		t.Fatalf("pay employee: %v", err)
	}
	if paid.SalaryDue != 0 {
		t.Fatalf("expected payment clamped at 0, got %v", paid.SalaryDue)
	}

	entries, _ := svc.ListSalaryEntries(ctx, memory.SeedEmployeeID, 0)
	if len(entries) != 1 || entries[0].Type != domain.SalaryTypeManual || entries[0].Period != domain.SalaryPeriodMonth {
		t.Fatalf("expected only the manual accrual entry, got %+v", entries)
	}

	if _, err := svc.AddSalaryAccrual(ctx, memory.SeedOwnerID, domain.SalaryAccrualRequest{Amount: 5}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for non-employee, got %v", err)
	}

	summary, err := svc.SalarySummary(employeeCtx())
	if err != nil {
		t.Fatalf("salary summary: %v", err)
	}
	if summary.ManualSalary != 100 || summary.TotalExpense != 100 || summary.SalaryDue != 0 {
		t.Fatalf("unexpected salary summary %+v", summary)
	}
}

func TestRegisterShopFlow(t *testing.T) {
	svc, _ := newTestService(t)

	owner, err := svc.SignInOwner(context.Background(), domain.GoogleIdentity{Subject: "google-123", Email: "New.Owner@Example.com"})
	if err != nil {
		t.Fatalf("sign in owner: %v", err)
	}
	if owner.Role != domain.RoleOwner || owner.Name != "new.owner" || owner.Email != "new.owner@example.com" {
		t.Fatalf("unexpected owner %+v", owner)
	}
	ctx := WithActor(context.Background(), actorOf(owner))

	if _, err := svc.RegisterShop(ctx, domain.ShopRegisterRequest{
		Name: "Second", Type: "hardware", GSTNumber: "27aapfu0939f1zv", OwnerMobile: "9876500000",
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate GST conflict, got %v", err)
	}

	shop, err := svc.RegisterShop(ctx, domain.ShopRegisterRequest{
		Name: "Second", Type: "hardware", GSTNumber: " 29abcde1234f1z5 ", OwnerMobile: "9876500000",
	})
	if err != nil {
		t.Fatalf("register shop: %v", err)
	}
	if len(shop.Code) != 5 || shop.GSTNumber != "29ABCDE1234F1Z5" || shop.OwnerID != owner.ID {
		t.Fatalf("unexpected shop %+v", shop)
	}

	actor, err := svc.ResolveActor(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("resolve actor: %v", err)
	}
	if actor.ShopID != shop.ID {
		t.Fatalf("expected owner linked to shop, got %+v", actor)
	}
	if _, err := svc.RegisterShop(WithActor(context.Background(), actor), domain.ShopRegisterRequest{
		Name: "Third", Type: "x", GSTNumber: "X", OwnerMobile: "9876500000",
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected second shop to conflict, got %v", err)
	}
}

func TestEmployeeUpsertAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerCtx()

	saved, err := svc.UpsertEmployee(ctx, domain.EmployeeUpsertRequest{
		Email:       "Asha@Example.com",
		PhoneNumber: "9812300000",
		Password:    "secret1",
	})
	if err != nil {
		t.Fatalf("upsert employee: %v", err)
	}
	if saved.ShopCode != memory.SeedShopCode || saved.Employee.Name != "asha" {
		t.Fatalf("unexpected upsert response %+v", saved)
	}
	if len(saved.Employee.EmployeeID) != 9 || saved.Employee.EmployeeID[:3] != "EMP" {
		t.Fatalf("unexpected employee id %q", saved.Employee.EmployeeID)
	}

	again, err := svc.UpsertEmployee(ctx, domain.EmployeeUpsertRequest{
		Name:        "Asha K",
		Email:       "asha@example.com",
		PhoneNumber: "9812300001",
		Password:    "secret2",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.Employee.ID != saved.Employee.ID || again.Employee.EmployeeID != saved.Employee.EmployeeID || again.Employee.Name != "Asha K" {
		t.Fatalf("expected the same employee updated, got %+v", again.Employee)
	}

	user, err := svc.AuthenticateEmployee(context.Background(), " demo1 ", "emp"+saved.Employee.EmployeeID[3:], "secret2")
	if err != nil {
		t.Fatalf("employee login: %v", err)
	}
	if user.ID != saved.Employee.ID {
		t.Fatalf("logged in as wrong user %s", user.ID)
	}
	if _, err := svc.AuthenticateEmployee(context.Background(), memory.SeedShopCode, saved.Employee.EmployeeID, "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}

	if _, err := svc.SignInOwner(context.Background(), domain.GoogleIdentity{Subject: "g-1", Email: "asha@example.com"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected employee email to be refused owner sign-in, got %v", err)
	}
	if _, err := svc.UpsertEmployee(ctx, domain.EmployeeUpsertRequest{Email: memory.SeedOwnerEmail, PhoneNumber: "9812300002", Password: "secret3"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected owner email to be rejected, got %v", err)
	}

	if err := svc.DeactivateEmployee(ctx, saved.Employee.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.ResolveActor(context.Background(), saved.Employee.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected deactivated session to be rejected, got %v", err)
	}
	if _, err := svc.AuthenticateEmployee(context.Background(), memory.SeedShopCode, saved.Employee.EmployeeID, "secret2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected deactivated login rejected, got %v", err)
	}
}

func TestSeedEmployeeLogin(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AuthenticateEmployee(context.Background(), memory.SeedShopCode, memory.SeedEmployeeCode, "employee123"); err != nil {
		t.Fatalf("seed employee login: %v", err)
	}
	if _, err := svc.AuthenticateEmployee(context.Background(), "ZZZZZ", memory.SeedEmployeeCode, "employee123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected unknown shop rejected, got %v", err)
	}
}

type fakeSummaryCache struct {
	mu      sync.Mutex
	values  map[string]*domain.SalesSummary
	deletes int
}

func (f *fakeSummaryCache) Get(_ context.Context, key string) (*domain.SalesSummary, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSummaryCache) Set(_ context.Context, key string, value *domain.SalesSummary, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSummaryCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	f.deletes++
	return nil
}

func TestAnalyticsOverFixedClock(t *testing.T) {
	t.Setenv("SEED_EMPLOYEE_PASSWORD", "employee123")
	loc := time.FixedZone("IST", 5*3600+1800)
	summaries := &fakeSummaryCache{values: make(map[string]*domain.SalesSummary)}
	svc := New(memory.NewSeeded(), summaries, nil, Settings{Location: loc, SummaryTTL: time.Minute})

	// Wednesday 11 March 2026.
	clock := time.Date(2026, time.March, 11, 10, 0, 0, 0, loc)
	svc.now = func() time.Time { return clock }
	ctx := ownerCtx()

	newBill := func(qty float64, split domain.PaymentSplit) {
		t.Helper()
		if _, err := svc.CreateBill(ctx, domain.BillCreateRequest{
			Items:          []domain.BillItemInput{{InventoryItemID: memory.SeedBricksID, Qty: qty}},
			PaymentSplit:   split,
			CustomerName:   "C",
			CustomerMobile: "9876543210",
		}); err != nil {
			t.Fatalf("create bill: %v", err)
		}
	}
	newBill(5, domain.PaymentSplit{Cash: 50})
	newBill(3, domain.PaymentSplit{Online: 10, Udhar: 20})
	clock = time.Date(2026, time.March, 9, 9, 0, 0, 0, loc)
	newBill(2, domain.PaymentSplit{Cash: 20})
	clock = time.Date(2026, time.February, 20, 9, 0, 0, 0, loc)
	newBill(1, domain.PaymentSplit{Cash: 10})
	clock = time.Date(2026, time.March, 11, 18, 0, 0, 0, loc)

	summary, err := svc.SalesSummary(ctx)
	if err != nil {
		t.Fatalf("sales summary: %v", err)
	}
	want := map[string]float64{"daily": 80, "weekly": 100, "monthly": 100, "yearly": 110}
	for _, card := range summary.Cards {
		if card.TotalRevenue != want[card.Key] {
			t.Fatalf("card %s: expected %v, got %v", card.Key, want[card.Key], card.TotalRevenue)
		}
	}
	if len(summary.Chart) != 7 || summary.Chart[6].Date != "2026-03-11" || summary.Chart[6].BillCount != 2 {
		t.Fatalf("unexpected chart %+v", summary.Chart)
	}
	if _, ok, _ := summaries.Get(ctx, "billmng:sales-summary:"+memory.SeedShopID); !ok {
		t.Fatalf("expected summary to be cached")
	}

	breakdown, err := svc.RevenueBreakdown(ctx, "", "")
	if err != nil {
		t.Fatalf("revenue breakdown: %v", err)
	}
	if breakdown.Totals.Cash != 70 || breakdown.Totals.Online != 10 || breakdown.Totals.Udhar != 20 || breakdown.Totals.Total != 100 {
		t.Fatalf("unexpected breakdown %+v", breakdown.Totals)
	}
	if breakdown.StartDate != "2026-03-01" || breakdown.EndDate != "2026-03-31" {
		t.Fatalf("unexpected breakdown range %s..%s", breakdown.StartDate, breakdown.EndDate)
	}

	ranged, err := svc.RevenueBreakdown(ctx, "2026-02-01", "2026-03-09")
	if err != nil {
		t.Fatalf("ranged breakdown: %v", err)
	}
	if ranged.Totals.Total != 30 || ranged.Totals.Bills != 2 {
		t.Fatalf("expected Feb 20 and Mar 9 bills, got %+v", ranged.Totals)
	}
	if _, err := svc.RevenueBreakdown(ctx, "2026-03-10", "2026-03-01"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected inverted range rejected, got %v", err)
	}

	top, err := svc.TopItems(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("top items: %v", err)
	}
	if len(top.Items) != 1 || top.Items[0].QuantitySold != 10 || top.Items[0].Revenue != 100 {
		t.Fatalf("unexpected top items %+v", top.Items)
	}

	if _, err := svc.SalesSummary(employeeCtx()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected employees to be refused sales summary, got %v", err)
	}

	newBill(1, domain.PaymentSplit{Cash: 10})
	if _, ok, _ := summaries.Get(ctx, "billmng:sales-summary:"+memory.SeedShopID); ok {
		t.Fatalf("expected new bill to drop the cached summary")
	}
}

func TestBillReportRanges(t *testing.T) {
	t.Setenv("SEED_EMPLOYEE_PASSWORD", "employee123")
	loc := time.UTC
	svc := New(memory.NewSeeded(), nil, nil, Settings{Location: loc})
	clock := time.Date(2026, time.April, 2, 12, 0, 0, 0, loc)
	svc.now = func() time.Time { return clock }

	create := func(ctx context.Context) {
		t.Helper()
		if _, err := svc.CreateBill(ctx, domain.BillCreateRequest{
			Items:          []domain.BillItemInput{{InventoryItemID: memory.SeedTilesID, Qty: 1}},
			PaymentSplit:   domain.PaymentSplit{Udhar: 25},
			CustomerName:   "C",
			CustomerMobile: "9876543210",
		}); err != nil {
			t.Fatalf("create bill: %v", err)
		}
	}
	create(employeeCtx())
	clock = time.Date(2026, time.March, 15, 12, 0, 0, 0, loc)
	create(ownerCtx())
	clock = time.Date(2026, time.April, 3, 12, 0, 0, 0, loc)

	current, err := svc.BillReport(ownerCtx(), ReportCurrentMonth, 0)
	if err != nil {
		t.Fatalf("current month report: %v", err)
	}
	if len(current.Bills) != 1 || !current.Detailed || current.Filename != "bills-month-4-2026.xlsx" {
		t.Fatalf("unexpected current month report %+v", current)
	}
	if current.BilledBy[current.Bills[0].CreatedBy] != "Ravi" {
		t.Fatalf("expected billed-by name, got %+v", current.BilledBy)
	}
	if _, ok := current.Credits[current.Bills[0].ID]; !ok {
		t.Fatalf("expected credit entry keyed by bill")
	}

	previous, err := svc.BillReport(ownerCtx(), ReportPreviousMonth, 0)
	if err != nil || len(previous.Bills) != 1 {
		t.Fatalf("expected one bill last month, got %d err=%v", len(previous.Bills), err)
	}
	all, err := svc.BillReport(ownerCtx(), "", 0)
	if err != nil || len(all.Bills) != 2 || all.Detailed {
		t.Fatalf("expected plain report of 2 bills, got %d err=%v", len(all.Bills), err)
	}
	if _, err := svc.BillReport(ownerCtx(), "weekly", 0); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown report rejected, got %v", err)
	}

	rows, err := svc.InventoryReport(ownerCtx())
	if err != nil {
		t.Fatalf("inventory report: %v", err)
	}
	for _, row := range rows {
		if row.Item.ID == memory.SeedTilesID && (row.UnitsSold != 2 || row.Revenue != 50) {
			t.Fatalf("unexpected tiles performance %+v", row)
		}
	}
}
