// Package billing prices carts and checks payment splits. It does no I/O:
// callers pass in the shop's current inventory and persist the result.
package billing

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

type LineKind int

const (
	LineManual LineKind = iota + 1
	LineInventory
)

func (k LineKind) String() string {
	switch k {
	case LineManual:
		return "manual"
	case LineInventory:
		return "inventory"
	default:
		return "unknown"
	}
}

// Line is a priced cart line. Kind is fixed by the constructor that built it.
type Line struct {
	Kind            LineKind
	InventoryItemID string
	Name            string
	Qty             float64
	Rate            float64
	Fare            float64
	Subtotal        float64
}

func newManualLine(name string, qty float64, rate float64, fare float64) Line {
	return Line{
		Kind:     LineManual,
		Name:     name,
		Qty:      qty,
		Rate:     rate,
		Fare:     fare,
		Subtotal: subtotal(qty, rate, fare),
	}
}

func newInventoryLine(item domain.InventoryItem, qty float64, fare float64) Line {
	rate := money.Round2(item.FinalSellingPricePerUnit)
	return Line{
		Kind:            LineInventory,
		InventoryItemID: item.ID,
		Name:            item.ItemName,
		Qty:             qty,
		Rate:            rate,
		Fare:            fare,
		Subtotal:        subtotal(qty, rate, fare),
	}
}

// subtotal folds the fare in before rounding: round2(qty*rate + fare).
func subtotal(qty float64, rate float64, fare float64) float64 {
	return money.Sum(qty*rate, fare)
}

func (l Line) BillLineItem(id string, billID string, shopID string, at time.Time) domain.BillLineItem {
	return domain.BillLineItem{
		ID:              id,
		BillID:          billID,
		ShopID:          shopID,
		InventoryItemID: l.InventoryItemID,
		ManualItem:      l.Kind == LineManual,
		Name:            l.Name,
		Qty:             l.Qty,
		Rate:            l.Rate,
		Fare:            l.Fare,
		Subtotal:        l.Subtotal,
		CreatedAt:       at,
	}
}

type Priced struct {
	Lines []Line
	// Deductions is the total quantity to take from each inventory item.
	Deductions map[string]float64
	Total      float64
}

// LineError names the 1-indexed cart line that failed validation.
type LineError struct {
	Line   int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Line, e.Reason)
}

func (e *LineError) Unwrap() error { return store.ErrValidation }

// PriceCart validates and prices every line in order. items holds the
// requesting shop's inventory keyed by id; a reference to any other id is
// treated as missing.
func PriceCart(inputs []domain.BillItemInput, items map[string]domain.InventoryItem) (Priced, error) {
	if len(inputs) == 0 {
		return Priced{}, store.Invalid("at least one item is required")
	}

	priced := Priced{
		Lines:      make([]Line, 0, len(inputs)),
		Deductions: make(map[string]float64),
	}
	subtotals := make([]float64, 0, len(inputs))

	for i, in := range inputs {
		n := i + 1
		if !money.Finite(in.Qty) || in.Qty <= 0 {
			return Priced{}, &LineError{Line: n, Reason: "qty must be greater than 0"}
		}
		if !money.Finite(in.Fare) || in.Fare < 0 {
			return Priced{}, &LineError{Line: n, Reason: "fare must be 0 or more"}
		}
		fare := money.Round2(in.Fare)

		itemID := strings.TrimSpace(in.InventoryItemID)
		var line Line
		if itemID == "" || in.ManualItem {
			name := strings.TrimSpace(in.Name)
			if name == "" || !hasLetter(name) {
				return Priced{}, &LineError{Line: n, Reason: "manual item name must contain letters"}
			}
			if !money.Finite(in.Rate) || in.Rate <= 0 {
				return Priced{}, &LineError{Line: n, Reason: "rate must be greater than 0"}
			}
			// The rate is kept as entered; only the subtotal is rounded.
			line = newManualLine(name, in.Qty, in.Rate, fare)
		} else {
			item, ok := items[itemID]
			if !ok {
				return Priced{}, &LineError{Line: n, Reason: "inventory item not found"}
			}
			requested := priced.Deductions[item.ID] + in.Qty
			if requested > item.TotalStockUnits {
				return Priced{}, &LineError{
					Line:   n,
					Reason: fmt.Sprintf("only %s units of %s in stock", formatQty(item.TotalStockUnits), item.ItemName),
				}
			}
			priced.Deductions[item.ID] = requested
			line = newInventoryLine(item, in.Qty, fare)
		}

		priced.Lines = append(priced.Lines, line)
		subtotals = append(subtotals, line.Subtotal)
	}

	priced.Total = money.Sum(subtotals...)
	return priced, nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func formatQty(q float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", q), "0"), ".")
}
