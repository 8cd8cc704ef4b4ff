package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock while finalizing bill, please retry")
	ErrLimitReached      = errors.New("limit reached")
	ErrExhausted         = errors.New("unique code generation exhausted, please retry")

	// ErrDuplicateCode reports a collision on a generated shop code or
	// employee id. Callers retry with a fresh candidate.
	ErrDuplicateCode = errors.New("generated code already in use")
)

// Invalid returns a validation error carrying a caller-facing message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFound reports a missing entity. It matches ErrNotFound.
func NotFound(entity string) error {
	return &kindError{msg: entity + " not found", kind: ErrNotFound}
}

// Conflict returns an error matching ErrConflict with a caller-facing message.
func Conflict(format string, args ...any) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrConflict}
}

// ErrCreditNotPayable is returned when paying an entry that is absent, owned
// by another shop, or already settled.
var ErrCreditNotPayable error = &kindError{msg: "credit entry not found or already settled", kind: ErrNotFound}

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// MaxInventoryItemsPerShop bounds how many inventory items a shop may hold.
const MaxInventoryItemsPerShop = 5

// BillUnit is everything one bill commits: the bill with its line items,
// the stock to take per inventory item, and the credit entry to open.
// Backends persist all of it or none of it.
type BillUnit struct {
	Bill       domain.Bill
	Deductions map[string]float64
	Credit     *domain.CreditEntry
}

// LabourAccrual moves employees' salary_due by Amount per entry.
// Amounts are already signed and rounded. Audit rows, when present, are
// written in the same unit as the counter updates.
type LabourAccrual struct {
	Entries []domain.LabourDetail
	Audit   []domain.SalaryEntry
}

func (a LabourAccrual) Empty() bool {
	return len(a.Entries) == 0 && len(a.Audit) == 0
}

// ItemEdit derives the item to persist, and the labour accrual that goes
// with it, from the stored row. Backends call it inside the unit that writes
// the result while no other writer can touch the row. It may run more than
// once when a transaction is retried.
type ItemEdit func(stored domain.InventoryItem) (domain.InventoryItem, LabourAccrual, error)

// ItemRemoval derives the accrual to apply when stored is deleted. It runs
// under the same rules as ItemEdit.
type ItemRemoval func(stored domain.InventoryItem) LabourAccrual

type BillFilter struct {
	ShopID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// CreditFilter with an empty Status matches every status; Limit 0 means no limit.
type CreditFilter struct {
	ShopID         string
	Status         domain.CreditStatus
	CustomerMobile string
	Limit          int
}

type Repository interface {
	CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)
	GetShop(ctx context.Context, shopID string) (*domain.Shop, error)
	GetShopByCode(ctx context.Context, code string) (*domain.Shop, error)
	UpdateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)

	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetEmployeeByCode(ctx context.Context, shopID string, employeeID string) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	ListEmployees(ctx context.Context, shopID string) ([]domain.User, error)
	AdjustSalaryDue(ctx context.Context, shopID string, userID string, delta float64, entry *domain.SalaryEntry) (*domain.User, error)
	ListSalaryEntries(ctx context.Context, shopID string, employeeID string, limit int) ([]domain.SalaryEntry, error)

	CreateInventoryItem(ctx context.Context, item domain.InventoryItem, accrual LabourAccrual) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, shopID string, itemID string) (*domain.InventoryItem, error)
	ListInventoryItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, shopID string, itemID string, edit ItemEdit) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, shopID string, itemID string, remove ItemRemoval) error

	CreateBill(ctx context.Context, unit BillUnit) (*domain.Bill, error)
	GetBill(ctx context.Context, shopID string, billID string) (*domain.Bill, error)
	ListBills(ctx context.Context, filter BillFilter) ([]domain.Bill, error)

	PayCredit(ctx context.Context, shopID string, creditID string, payment domain.CreditPayment) (*domain.CreditEntry, error)
	ListCredits(ctx context.Context, filter CreditFilter) ([]domain.CreditEntry, error)

	SalesTotals(ctx context.Context, shopID string, from time.Time, to time.Time) (domain.SalesTotals, error)
	TopItems(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.TopItem, error)
	SalaryTotals(ctx context.Context, shopID string, from time.Time, to time.Time) (domain.SalaryTotals, error)
	UnitsSold(ctx context.Context, shopID string) (map[string]domain.TopItem, error)
}
