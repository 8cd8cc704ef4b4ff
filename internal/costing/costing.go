// Package costing derives an inventory item's unit cost and selling price
// from its material, fuel and labour inputs.
package costing

import (
	"sort"
	"strings"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

type Input struct {
	ItemName        string
	TotalStockUnits float64
	MaterialCost    float64
	FuelCost        float64
	ProfitPerUnit   float64
	Labour          []domain.LabourDetailInput
}

type Breakdown struct {
	ItemName                 string
	TotalStockUnits          float64
	MaterialCost             float64
	FuelCost                 float64
	Labour                   []domain.LabourDetail
	CostOfLabour             float64
	TotalCost                float64
	CostPerUnit              float64
	ProfitPerUnit            float64
	FinalSellingPricePerUnit float64
}

func Compute(in Input) (Breakdown, error) {
	name := strings.TrimSpace(in.ItemName)
	if name == "" {
		return Breakdown{}, store.Invalid("item_name is required")
	}
	if !money.Finite(in.TotalStockUnits) || in.TotalStockUnits <= 0 {
		return Breakdown{}, store.Invalid("total_stock_units must be greater than 0")
	}
	if !money.Finite(in.MaterialCost) || in.MaterialCost < 0 {
		return Breakdown{}, store.Invalid("material_cost must be 0 or more")
	}
	if !money.Finite(in.FuelCost) || in.FuelCost < 0 {
		return Breakdown{}, store.Invalid("fuel_cost must be 0 or more")
	}
	if !money.Finite(in.ProfitPerUnit) || in.ProfitPerUnit < 0 {
		return Breakdown{}, store.Invalid("profit_per_unit must be 0 or more")
	}

	labour, err := Labour(in.Labour)
	if err != nil {
		return Breakdown{}, err
	}
	costs := make([]float64, 0, len(labour))
	for _, entry := range labour {
		costs = append(costs, entry.LabourCost)
	}

	b := Breakdown{
		ItemName:        name,
		TotalStockUnits: in.TotalStockUnits,
		MaterialCost:    money.Round2(in.MaterialCost),
		FuelCost:        money.Round2(in.FuelCost),
		Labour:          labour,
		CostOfLabour:    money.Sum(costs...),
		ProfitPerUnit:   money.Round2(in.ProfitPerUnit),
	}
	b.TotalCost = money.Sum(b.MaterialCost, b.FuelCost, b.CostOfLabour)
	b.CostPerUnit = money.Div(b.TotalCost, b.TotalStockUnits)
	b.FinalSellingPricePerUnit = money.Sum(b.CostPerUnit, b.ProfitPerUnit)
	return b, nil
}

// Labour validates labour inputs, trimming employee ids and rounding costs.
func Labour(inputs []domain.LabourDetailInput) ([]domain.LabourDetail, error) {
	labour := make([]domain.LabourDetail, 0, len(inputs))
	for i, entry := range inputs {
		employeeID := strings.TrimSpace(entry.EmployeeID)
		if employeeID == "" {
			return nil, store.Invalid("labour entry %d: employee_id is required", i+1)
		}
		if !money.Finite(entry.LabourCost) || entry.LabourCost < 0 {
			return nil, store.Invalid("labour entry %d: labour_cost must be 0 or more", i+1)
		}
		labour = append(labour, domain.LabourDetail{EmployeeID: employeeID, LabourCost: money.Round2(entry.LabourCost)})
	}
	return labour, nil
}

// Apply copies the derived fields onto item.
func (b Breakdown) Apply(item *domain.InventoryItem) {
	item.ItemName = b.ItemName
	item.TotalStockUnits = b.TotalStockUnits
	item.MaterialCost = b.MaterialCost
	item.FuelCost = b.FuelCost
	item.LabourDetails = b.Labour
	item.CostOfLabour = b.CostOfLabour
	item.TotalCost = b.TotalCost
	item.CostPerUnit = b.CostPerUnit
	item.ProfitPerUnit = b.ProfitPerUnit
	item.FinalSellingPricePerUnit = b.FinalSellingPricePerUnit
}

// LabourDelta returns, per employee, the new labour total minus the old one.
// Employees whose total did not change are left out. The result is sorted by
// employee id.
func LabourDelta(previous []domain.LabourDetail, next []domain.LabourDetail) []domain.LabourDetail {
	totals := make(map[string]float64, len(previous)+len(next))
	for _, entry := range previous {
		totals[entry.EmployeeID] = money.Sum(totals[entry.EmployeeID], -entry.LabourCost)
	}
	for _, entry := range next {
		totals[entry.EmployeeID] = money.Sum(totals[entry.EmployeeID], entry.LabourCost)
	}

	delta := make([]domain.LabourDetail, 0, len(totals))
	for employeeID, amount := range totals {
		if amount == 0 {
			continue
		}
		delta = append(delta, domain.LabourDetail{EmployeeID: employeeID, LabourCost: amount})
	}
	sort.Slice(delta, func(i, j int) bool {
		return delta[i].EmployeeID < delta[j].EmployeeID
	})
	return delta
}

// Scale multiplies each labour cost by multiplier, rounding the result.
func Scale(entries []domain.LabourDetail, multiplier float64) []domain.LabourDetail {
	scaled := make([]domain.LabourDetail, 0, len(entries))
	for _, entry := range entries {
		amount := money.Mul(entry.LabourCost, multiplier)
		if amount == 0 {
			continue
		}
		scaled = append(scaled, domain.LabourDetail{EmployeeID: entry.EmployeeID, LabourCost: amount})
	}
	return scaled
}
