package billing

import (
	"errors"
	"math"
	"testing"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

func testInventory() map[string]domain.InventoryItem {
	return map[string]domain.InventoryItem{
		"item-bricks": {ID: "item-bricks", ItemName: "Bricks", TotalStockUnits: 10, FinalSellingPricePerUnit: 20},
		"item-tiles":  {ID: "item-tiles", ItemName: "Tiles", TotalStockUnits: 3, FinalSellingPricePerUnit: 12.5},
	}
}

func TestPriceCartManualLine(t *testing.T) {
	priced, err := PriceCart([]domain.BillItemInput{{ManualItem: true, Name: "Tea", Qty: 2, Rate: 10}}, nil)
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	if len(priced.Lines) != 1 || priced.Lines[0].Kind != LineManual {
		t.Fatalf("expected one manual line, got %+v", priced.Lines)
	}
	if priced.Lines[0].Subtotal != 20 || priced.Total != 20 {
		t.Fatalf("expected subtotal and total 20, got %v / %v", priced.Lines[0].Subtotal, priced.Total)
	}
	if len(priced.Deductions) != 0 {
		t.Fatalf("manual lines must not deduct stock, got %v", priced.Deductions)
	}
}

func TestPriceCartInventoryLineIgnoresCallerRate(t *testing.T) {
	priced, err := PriceCart([]domain.BillItemInput{{InventoryItemID: "item-bricks", Qty: 3, Rate: 1, Fare: 5}}, testInventory())
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	line := priced.Lines[0]
	if line.Kind != LineInventory || line.Rate != 20 {
		t.Fatalf("expected inventory line at rate 20, got %+v", line)
	}
	if line.Subtotal != 65 {
		t.Fatalf("expected subtotal 65, got %v", line.Subtotal)
	}
	if priced.Deductions["item-bricks"] != 3 {
		t.Fatalf("expected deduction of 3, got %v", priced.Deductions)
	}
}

func TestPriceCartManualFlagWinsOverReference(t *testing.T) {
	priced, err := PriceCart([]domain.BillItemInput{{InventoryItemID: "item-bricks", ManualItem: true, Name: "Loose sand", Qty: 1, Rate: 7}}, testInventory())
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	if priced.Lines[0].Kind != LineManual || len(priced.Deductions) != 0 {
		t.Fatalf("expected flagged line to be manual, got %+v", priced.Lines[0])
	}
}

func TestPriceCartAccumulatesRepeatedReferences(t *testing.T) {
	inputs := []domain.BillItemInput{
		{InventoryItemID: "item-tiles", Qty: 2},
		{InventoryItemID: "item-tiles", Qty: 1},
	}
	priced, err := PriceCart(inputs, testInventory())
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	if priced.Deductions["item-tiles"] != 3 || len(priced.Deductions) != 1 {
		t.Fatalf("expected single deduction of 3, got %v", priced.Deductions)
	}
	if priced.Total != 37.5 {
		t.Fatalf("expected total 37.5, got %v", priced.Total)
	}

	_, err = PriceCart(append(inputs, domain.BillItemInput{InventoryItemID: "item-tiles", Qty: 1}), testInventory())
	var lineErr *LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 3 {
		t.Fatalf("expected line 3 to fail on cumulative stock, got %v", err)
	}
}

func TestPriceCartRejectsInvalidLines(t *testing.T) {
	cases := []struct {
		name  string
		input domain.BillItemInput
	}{
		{"zero qty", domain.BillItemInput{ManualItem: true, Name: "Tea", Qty: 0, Rate: 10}},
		{"nan qty", domain.BillItemInput{ManualItem: true, Name: "Tea", Qty: math.NaN(), Rate: 10}},
		{"negative fare", domain.BillItemInput{ManualItem: true, Name: "Tea", Qty: 1, Rate: 10, Fare: -1}},
		{"digits only name", domain.BillItemInput{ManualItem: true, Name: "1234", Qty: 1, Rate: 10}},
		{"blank name", domain.BillItemInput{Name: "   ", Qty: 1, Rate: 10}},
		{"zero rate", domain.BillItemInput{Name: "Tea", Qty: 1, Rate: 0}},
		{"unknown item", domain.BillItemInput{InventoryItemID: "item-other-shop", Qty: 1}},
		{"over stock", domain.BillItemInput{InventoryItemID: "item-tiles", Qty: 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inputs := []domain.BillItemInput{{ManualItem: true, Name: "Tea", Qty: 1, Rate: 10}, tc.input}
			_, err := PriceCart(inputs, testInventory())
			var lineErr *LineError
			if !errors.As(err, &lineErr) {
				t.Fatalf("expected line error, got %v", err)
			}
			if lineErr.Line != 2 {
				t.Fatalf("expected failure on line 2, got %d", lineErr.Line)
			}
			if !errors.Is(err, store.ErrValidation) {
				t.Fatalf("expected validation class, got %v", err)
			}
		})
	}
}

func TestPriceCartRejectsEmptyCart(t *testing.T) {
	if _, err := PriceCart(nil, nil); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}

func TestPriceCartSubtotalsReconcileWithTotal(t *testing.T) {
	inputs := []domain.BillItemInput{
		{Name: "Nails", Qty: 3, Rate: 0.1},
		{Name: "Paint", Qty: 1.5, Rate: 33.33, Fare: 0.005},
		{Name: "Wire", Qty: 7, Rate: 1.11, Fare: 2.2},
	}
	priced, err := PriceCart(inputs, nil)
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	want := 0.0
	for _, line := range priced.Lines {
		want += line.Subtotal
	}
	if got := priced.Total; got != roundForTest(want) {
		t.Fatalf("expected total %v to equal rounded sum %v", got, roundForTest(want))
	}
	if priced.Lines[0].Subtotal != 0.3 {
		t.Fatalf("expected 0.3 for 3 x 0.1, got %v", priced.Lines[0].Subtotal)
	}
}

func roundForTest(x float64) float64 {
	return math.Round(x*100) / 100
}

func TestValidateSplitModes(t *testing.T) {
	cases := []struct {
		name  string
		total float64
		split domain.PaymentSplit
		want  domain.PaymentMode
	}{
		{"cash", 20, domain.PaymentSplit{Cash: 20}, domain.PaymentFullCash},
		{"online", 20, domain.PaymentSplit{Online: 20}, domain.PaymentFullOnline},
		{"udhar", 20, domain.PaymentSplit{Udhar: 20}, domain.PaymentFullUdhar},
		{"hybrid", 100, domain.PaymentSplit{Cash: 40, Udhar: 60}, domain.PaymentHybrid},
		{"zero total", 0, domain.PaymentSplit{}, domain.PaymentFullCash},
		{"rounded parts", 0.3, domain.PaymentSplit{Cash: 0.1, Online: 0.2}, domain.PaymentHybrid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, mode, err := ValidateSplit(tc.total, tc.split)
			if err != nil {
				t.Fatalf("validate split: %v", err)
			}
			if mode != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, mode)
			}
		})
	}
}

func TestValidateSplitRejectsMismatchAndNegatives(t *testing.T) {
	if _, _, err := ValidateSplit(100, domain.PaymentSplit{Cash: 99.99}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected mismatch to fail, got %v", err)
	}
	if _, _, err := ValidateSplit(100, domain.PaymentSplit{Cash: 120, Online: -20}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected negative part to fail, got %v", err)
	}
	if _, _, err := ValidateSplit(100, domain.PaymentSplit{Cash: math.Inf(1)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected infinite part to fail, got %v", err)
	}
}

func TestValidateSplitRoundsBeforeSignCheck(t *testing.T) {
	split, mode, err := ValidateSplit(10, domain.PaymentSplit{Cash: 10, Online: -0.001})
	if err != nil {
		t.Fatalf("expected part rounding to zero to pass, got %v", err)
	}
	if split.Online != 0 || mode != domain.PaymentFullCash {
		t.Fatalf("expected online 0 and FULL_CASH, got %+v %s", split, mode)
	}
	if _, _, err := ValidateSplit(10, domain.PaymentSplit{Cash: 10.01, Online: -0.01}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected -0.01 to fail, got %v", err)
	}
}

func TestPriceCartKeepsSubCentManualRate(t *testing.T) {
	priced, err := PriceCart([]domain.BillItemInput{{Name: "Washers", Qty: 1000, Rate: 0.004}}, nil)
	if err != nil {
		t.Fatalf("expected a positive sub-cent rate to pass, got %v", err)
	}
	line := priced.Lines[0]
	if line.Rate != 0.004 || line.Subtotal != 4 || priced.Total != 4 {
		t.Fatalf("expected rate 0.004 and subtotal 4, got %+v total %v", line, priced.Total)
	}
}
