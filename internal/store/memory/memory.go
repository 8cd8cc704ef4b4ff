package memory

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

// Seed identifiers, exported for tests and local demos.
const (
	SeedShopID         = "shop-demo"
	SeedShopCode       = "DEMO1"
	SeedOwnerID        = "user-owner"
	SeedOwnerEmail     = "owner@demo.test"
	SeedEmployeeID     = "user-emp-ravi"
	SeedEmployeeCode   = "EMP100001"
	SeedSecondEmployee = "user-emp-sita"
	SeedBricksID       = "item-bricks"
	SeedTilesID        = "item-tiles"
)

// Store keeps everything in process. Every operation holds the lock for its
// whole duration, which makes each one atomic.
type Store struct {
	mu            sync.RWMutex
	shops         map[string]domain.Shop
	users         map[string]domain.User
	items         map[string]domain.InventoryItem
	bills         map[string]domain.Bill
	lineItems     map[string]domain.BillLineItem
	credits       map[string]domain.CreditEntry
	salaryEntries []domain.SalaryEntry
}

func New() *Store {
	return &Store{
		shops:     make(map[string]domain.Shop),
		users:     make(map[string]domain.User),
		items:     make(map[string]domain.InventoryItem),
		bills:     make(map[string]domain.Bill),
		lineItems: make(map[string]domain.BillLineItem),
		credits:   make(map[string]domain.CreditEntry),
	}
}

// NewSeeded returns a store holding one demo shop with an owner, two
// employees and two inventory items. The employee password comes from
// SEED_EMPLOYEE_PASSWORD.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	password := os.Getenv("SEED_EMPLOYEE_PASSWORD")
	if password == "" {
		password = "employee123"
		zap.L().Warn("memory store using default seed employee password; set SEED_EMPLOYEE_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		zap.L().Fatal("hash seed password", zap.Error(err))
	}

	s.shops[SeedShopID] = domain.Shop{
		ID:          SeedShopID,
		Code:        SeedShopCode,
		Name:        "Demo Traders",
		Type:        "hardware",
		GSTNumber:   "27AAPFU0939F1ZV",
		OwnerID:     SeedOwnerID,
		OwnerMobile: "+919876543210",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, u := range []domain.User{
		{ID: SeedOwnerID, Role: domain.RoleOwner, Name: "Demo Owner", Email: SeedOwnerEmail, ShopID: SeedShopID},
		{ID: SeedEmployeeID, Role: domain.RoleEmployee, Name: "Ravi", PhoneNumber: "+919812345678", ShopID: SeedShopID, EmployeeID: SeedEmployeeCode, PasswordHash: string(hash)},
		{ID: SeedSecondEmployee, Role: domain.RoleEmployee, Name: "Sita", PhoneNumber: "+919812345679", ShopID: SeedShopID, EmployeeID: "EMP100002", PasswordHash: string(hash)},
	} {
		u.IsActive = true
		u.CreatedAt = now
		u.UpdatedAt = now
		s.users[u.ID] = u
	}
	for _, item := range []domain.InventoryItem{
		{ID: SeedBricksID, ItemName: "Bricks", TotalStockUnits: 100, MaterialCost: 500, FuelCost: 100, TotalCost: 600, CostPerUnit: 6, ProfitPerUnit: 4, FinalSellingPricePerUnit: 10},
		{ID: SeedTilesID, ItemName: "Tiles", TotalStockUnits: 20, MaterialCost: 300, FuelCost: 50, TotalCost: 350, CostPerUnit: 17.5, ProfitPerUnit: 7.5, FinalSellingPricePerUnit: 25},
	} {
		item.ShopID = SeedShopID
		item.LabourDetails = []domain.LabourDetail{}
		item.CreatedBy = SeedOwnerID
		item.CreatedAt = now
		item.UpdatedAt = now
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) CreateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shops {
		if existing.Code == shop.Code {
			return nil, store.ErrDuplicateCode
		}
		if existing.GSTNumber == shop.GSTNumber {
			return nil, store.Conflict("gst number already registered")
		}
	}
	owner, ok := s.users[shop.OwnerID]
	if !ok {
		return nil, store.NotFound("owner")
	}
	if owner.ShopID != "" {
		return nil, store.Conflict("owner already has a shop")
	}

	owner.ShopID = shop.ID
	owner.UpdatedAt = shop.CreatedAt
	s.users[owner.ID] = owner
	s.shops[shop.ID] = shop
	created := shop
	return &created, nil
}

func (s *Store) GetShop(_ context.Context, shopID string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shop, ok := s.shops[shopID]
	if !ok {
		return nil, store.NotFound("shop")
	}
	return &shop, nil
}

func (s *Store) GetShopByCode(_ context.Context, code string) (*domain.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shop := range s.shops {
		if shop.Code == code {
			found := shop
			return &found, nil
		}
	}
	return nil, store.NotFound("shop")
}

func (s *Store) UpdateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.shops[shop.ID]
	if !ok {
		return nil, store.NotFound("shop")
	}
	existing.Name = shop.Name
	existing.Type = shop.Type
	existing.OwnerMobile = shop.OwnerMobile
	existing.UpdatedAt = time.Now().UTC()
	s.shops[shop.ID] = existing
	return &existing, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if user.EmployeeID != "" && existing.EmployeeID == user.EmployeeID {
			return nil, store.ErrDuplicateCode
		}
		if user.Email != "" && existing.Email == user.Email {
			return nil, store.Conflict("email already registered")
		}
	}
	if _, exists := s.users[user.ID]; exists {
		return nil, store.Conflict("user already exists")
	}
	s.users[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, store.NotFound("user")
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if email != "" && user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, store.NotFound("user")
}

func (s *Store) GetEmployeeByCode(_ context.Context, shopID string, employeeID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Role == domain.RoleEmployee && user.ShopID == shopID && user.EmployeeID == employeeID {
			found := user
			return &found, nil
		}
	}
	return nil, store.NotFound("employee")
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, store.NotFound("user")
	}
	for id, other := range s.users {
		if id == user.ID {
			continue
		}
		if user.Email != "" && other.Email == user.Email {
			return nil, store.Conflict("email already registered")
		}
		if user.EmployeeID != "" && other.EmployeeID == user.EmployeeID {
			return nil, store.ErrDuplicateCode
		}
	}
	// salary_due only moves through AdjustSalaryDue and labour accruals.
	user.SalaryDue = existing.SalaryDue
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) ListEmployees(_ context.Context, shopID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.User, 0, 8)
	for _, user := range s.users {
		if user.Role == domain.RoleEmployee && user.ShopID == shopID && user.IsActive {
			employees = append(employees, user)
		}
	}
	sort.Slice(employees, func(i, j int) bool {
		if employees[i].CreatedAt.Equal(employees[j].CreatedAt) {
			return employees[i].Name < employees[j].Name
		}
		return employees[i].CreatedAt.After(employees[j].CreatedAt)
	})
	return employees, nil
}

func (s *Store) AdjustSalaryDue(_ context.Context, shopID string, userID string, delta float64, entry *domain.SalaryEntry) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok || user.ShopID != shopID || user.Role != domain.RoleEmployee {
		return nil, store.NotFound("employee")
	}
	user.SalaryDue = max(0, money.Sum(user.SalaryDue, delta))
	user.UpdatedAt = time.Now().UTC()
	s.users[userID] = user
	if entry != nil {
		s.salaryEntries = append(s.salaryEntries, *entry)
	}
	return &user, nil
}

func (s *Store) ListSalaryEntries(_ context.Context, shopID string, employeeID string, limit int) ([]domain.SalaryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.SalaryEntry, 0, 16)
	for i := len(s.salaryEntries) - 1; i >= 0; i-- {
		entry := s.salaryEntries[i]
		if entry.ShopID != shopID || (employeeID != "" && entry.EmployeeID != employeeID) {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// applyAccrual must be called with the write lock held.
func (s *Store) applyAccrual(shopID string, accrual store.LabourAccrual) {
	now := time.Now().UTC()
	for _, entry := range accrual.Entries {
		user, ok := s.users[entry.EmployeeID]
		if !ok || user.ShopID != shopID {
			continue
		}
		user.SalaryDue = max(0, money.Sum(user.SalaryDue, entry.LabourCost))
		user.UpdatedAt = now
		s.users[user.ID] = user
	}
	s.salaryEntries = append(s.salaryEntries, accrual.Audit...)
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem, accrual store.LabourAccrual) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, existing := range s.items {
		if existing.ShopID == item.ShopID {
			count++
		}
	}
	if count >= store.MaxInventoryItemsPerShop {
		return nil, store.ErrLimitReached
	}

	s.items[item.ID] = cloneItem(item)
	s.applyAccrual(item.ShopID, accrual)
	created := cloneItem(item)
	return &created, nil
}

func (s *Store) GetInventoryItem(_ context.Context, shopID string, itemID string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok || item.ShopID != shopID {
		return nil, store.NotFound("inventory item")
	}
	found := cloneItem(item)
	return &found, nil
}

func (s *Store) ListInventoryItems(_ context.Context, shopID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, store.MaxInventoryItemsPerShop)
	for _, item := range s.items {
		if item.ShopID == shopID {
			items = append(items, cloneItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ItemName < items[j].ItemName
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, shopID string, itemID string, edit store.ItemEdit) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[itemID]
	if !ok || existing.ShopID != shopID {
		return nil, store.NotFound("inventory item")
	}
	item, accrual, err := edit(cloneItem(existing))
	if err != nil {
		return nil, err
	}
	item.ID = existing.ID
	item.ShopID = existing.ShopID
	item.CreatedBy = existing.CreatedBy
	item.CreatedAt = existing.CreatedAt
	s.items[item.ID] = cloneItem(item)
	s.applyAccrual(shopID, accrual)
	updated := cloneItem(item)
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, shopID string, itemID string, remove store.ItemRemoval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[itemID]
	if !ok || existing.ShopID != shopID {
		return store.NotFound("inventory item")
	}
	s.applyAccrual(shopID, remove(cloneItem(existing)))
	delete(s.items, itemID)
	return nil
}

func (s *Store) CreateBill(_ context.Context, unit store.BillUnit) (*domain.Bill, error) {
	if len(unit.Bill.Items) == 0 {
		return nil, store.Invalid("bill has no items")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every guard before touching any state so a failure leaves
	// nothing behind.
	for itemID, qty := range unit.Deductions {
		item, ok := s.items[itemID]
		if !ok || item.ShopID != unit.Bill.ShopID || item.TotalStockUnits < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	bill := cloneBill(unit.Bill)
	bill.ItemIDs = make([]string, 0, len(bill.Items))
	for i := range bill.Items {
		bill.Items[i].BillID = bill.ID
		s.lineItems[bill.Items[i].ID] = bill.Items[i]
		bill.ItemIDs = append(bill.ItemIDs, bill.Items[i].ID)
	}
	for itemID, qty := range unit.Deductions {
		item := s.items[itemID]
		item.TotalStockUnits -= qty
		item.UpdatedAt = bill.CreatedAt
		s.items[itemID] = item
	}
	if unit.Credit != nil {
		s.credits[unit.Credit.ID] = cloneCredit(*unit.Credit)
	}

	stored := cloneBill(bill)
	stored.Items = nil
	s.bills[bill.ID] = stored
	return &bill, nil
}

func (s *Store) GetBill(_ context.Context, shopID string, billID string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[billID]
	if !ok || bill.ShopID != shopID {
		return nil, store.NotFound("bill")
	}
	hydrated := s.hydrate(bill)
	return &hydrated, nil
}

func (s *Store) ListBills(_ context.Context, filter store.BillFilter) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, 32)
	for _, bill := range s.bills {
		if bill.ShopID != filter.ShopID || !inRange(bill.CreatedAt, filter.From, filter.To) {
			continue
		}
		bills = append(bills, bill)
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	if filter.Limit > 0 && len(bills) > filter.Limit {
		bills = bills[:filter.Limit]
	}
	for i := range bills {
		bills[i] = s.hydrate(bills[i])
	}
	return bills, nil
}

func (s *Store) hydrate(bill domain.Bill) domain.Bill {
	out := cloneBill(bill)
	out.Items = make([]domain.BillLineItem, 0, len(bill.ItemIDs))
	for _, id := range bill.ItemIDs {
		if line, ok := s.lineItems[id]; ok {
			out.Items = append(out.Items, line)
		}
	}
	return out
}

func (s *Store) PayCredit(_ context.Context, shopID string, creditID string, payment domain.CreditPayment) (*domain.CreditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.credits[creditID]
	if !ok || entry.ShopID != shopID || entry.Status != domain.CreditPending {
		return nil, store.ErrCreditNotPayable
	}
	if payment.Amount > entry.PendingAmount {
		return nil, store.Invalid("payment amount %.2f exceeds pending amount %.2f", payment.Amount, entry.PendingAmount)
	}

	entry = cloneCredit(entry)
	entry.PendingAmount = money.Sum(entry.PendingAmount, -payment.Amount)
	entry.SettledAmount = money.Sum(entry.SettledAmount, payment.Amount)
	if entry.PendingAmount <= 0 {
		entry.PendingAmount = 0
		entry.Status = domain.CreditSettled
	}
	entry.Payments = append(entry.Payments, payment)
	entry.Version++
	entry.UpdatedAt = payment.CreatedAt
	s.credits[creditID] = entry

	updated := cloneCredit(entry)
	return &updated, nil
}

func (s *Store) ListCredits(_ context.Context, filter store.CreditFilter) ([]domain.CreditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.CreditEntry, 0, 16)
	for _, entry := range s.credits {
		if entry.ShopID != filter.ShopID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if filter.CustomerMobile != "" && entry.CustomerMobile != filter.CustomerMobile {
			continue
		}
		entries = append(entries, cloneCredit(entry))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (s *Store) SalesTotals(_ context.Context, shopID string, from time.Time, to time.Time) (domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.SalesTotals
	for _, bill := range s.bills {
		if bill.ShopID != shopID || !inRange(bill.CreatedAt, &from, &to) {
			continue
		}
		totals.Bills++
		totals.Cash = money.Sum(totals.Cash, bill.PaymentSplit.Cash)
		totals.Online = money.Sum(totals.Online, bill.PaymentSplit.Online)
		totals.Udhar = money.Sum(totals.Udhar, bill.PaymentSplit.Udhar)
		totals.Total = money.Sum(totals.Total, bill.TotalAmount)
	}
	return totals, nil
}

func (s *Store) TopItems(_ context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.TopItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]domain.TopItem)
	for _, line := range s.lineItems {
		if line.ShopID != shopID || !inRange(line.CreatedAt, &from, &to) {
			continue
		}
		agg := byName[line.Name]
		agg.Name = line.Name
		agg.QuantitySold += line.Qty
		agg.Revenue = money.Sum(agg.Revenue, line.Subtotal)
		byName[line.Name] = agg
	}

	items := make([]domain.TopItem, 0, len(byName))
	for _, agg := range byName {
		items = append(items, agg)
	}
	slices.SortFunc(items, func(a, b domain.TopItem) int {
		switch {
		case a.QuantitySold > b.QuantitySold:
			return -1
		case a.QuantitySold < b.QuantitySold:
			return 1
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) SalaryTotals(_ context.Context, shopID string, from time.Time, to time.Time) (domain.SalaryTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.SalaryTotals
	for _, user := range s.users {
		if user.Role == domain.RoleEmployee && user.ShopID == shopID && user.IsActive {
			totals.SalaryDue = money.Sum(totals.SalaryDue, user.SalaryDue)
		}
	}
	for _, entry := range s.salaryEntries {
		if entry.ShopID != shopID || !inRange(entry.CreatedAt, &from, &to) {
			continue
		}
		switch entry.Type {
		case domain.SalaryTypeManual:
			totals.ManualSalary = money.Sum(totals.ManualSalary, entry.Amount)
		case domain.SalaryTypeLabour:
			totals.LabourAccrual = money.Sum(totals.LabourAccrual, entry.Amount)
		}
	}
	return totals, nil
}

func (s *Store) UnitsSold(_ context.Context, shopID string) (map[string]domain.TopItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[string]domain.TopItem)
	for _, line := range s.lineItems {
		if line.ShopID != shopID || line.InventoryItemID == "" {
			continue
		}
		agg := sold[line.InventoryItemID]
		agg.Name = line.Name
		agg.QuantitySold += line.Qty
		agg.Revenue = money.Sum(agg.Revenue, line.Subtotal)
		sold[line.InventoryItemID] = agg
	}
	return sold, nil
}

// inRange reports whether from <= t < to, treating nil bounds as open.
func inRange(t time.Time, from *time.Time, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func cloneItem(src domain.InventoryItem) domain.InventoryItem {
	dst := src
	dst.LabourDetails = append([]domain.LabourDetail{}, src.LabourDetails...)
	return dst
}

func cloneBill(src domain.Bill) domain.Bill {
	dst := src
	dst.Items = append([]domain.BillLineItem(nil), src.Items...)
	dst.ItemIDs = append([]string(nil), src.ItemIDs...)
	return dst
}

func cloneCredit(src domain.CreditEntry) domain.CreditEntry {
	dst := src
	dst.Payments = append([]domain.CreditPayment{}, src.Payments...)
	return dst
}
