// Package export renders bills and inventory sales as xlsx workbooks.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "2006-01-02 15:04"

type column struct {
	header string
	width  float64
}

var billColumns = []column{
	{"Bill ID", 38}, {"Bill Number", 20}, {"Date", 18}, {"Customer Name", 18}, {"Customer Mobile", 16},
	{"Payment Mode", 14}, {"Cash", 10}, {"Online", 10}, {"Udhar", 10}, {"Items", 60}, {"Total Amount", 14},
}

var billDetailColumns = []column{
	{"Bill Number", 20}, {"Date", 18}, {"Customer Name", 18}, {"Customer Mobile", 16}, {"Billed By", 16},
	{"Payment Mode", 14}, {"Cash", 10}, {"Online", 10}, {"Udhar", 10}, {"Pending Udhar", 14},
	{"Udhar Payments Count", 14}, {"Udhar Payments Detail", 30}, {"Items", 60}, {"Total Amount", 14},
}

var inventoryColumns = []column{
	{"Item Name", 24}, {"Total Units Sold", 16}, {"Remaining Stock", 16}, {"Total Revenue", 16},
	{"Cost Per Unit", 14}, {"Total Profit", 16},
}

// Bills renders a bill report. Detailed reports carry credit and billed-by
// columns and end with a summary row.
func Bills(report domain.BillReport, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	title := report.Title
	if title == "" {
		title = "Bills"
	}

	columns := billColumns
	if report.Detailed {
		columns = billDetailColumns
	}
	f, err := newSheet(title, columns)
	if err != nil {
		return nil, err
	}

	totals := make([]float64, 0, len(report.Bills))
	for i, bill := range report.Bills {
		var row []interface{}
		if report.Detailed {
			credit, hasCredit := report.Credits[bill.ID]
			billedBy := report.BilledBy[bill.CreatedBy]
			if billedBy == "" {
				billedBy = "N/A"
			}
			var pending float64
			var payments []domain.CreditPayment
			if hasCredit {
				pending = credit.PendingAmount
				payments = credit.Payments
			}
			row = []interface{}{
				bill.BillNumber, bill.CreatedAt.In(loc).Format(dateLayout), bill.CustomerName, bill.CustomerMobile, billedBy,
				string(bill.PaymentMode), bill.PaymentSplit.Cash, bill.PaymentSplit.Online, bill.PaymentSplit.Udhar, pending,
				len(payments), paymentsDetail(payments, loc), itemsDetail(bill.Items), bill.TotalAmount,
			}
		} else {
			row = []interface{}{
				bill.ID, bill.BillNumber, bill.CreatedAt.In(loc).Format(dateLayout), bill.CustomerName, bill.CustomerMobile,
				string(bill.PaymentMode), bill.PaymentSplit.Cash, bill.PaymentSplit.Online, bill.PaymentSplit.Udhar,
				itemsDetail(bill.Items), bill.TotalAmount,
			}
		}
		if err := setRow(f, title, i+2, row); err != nil {
			return nil, err
		}
		totals = append(totals, bill.TotalAmount)
	}

	if report.Detailed {
		// One blank row, then the summary.
		summary := make([]interface{}, len(columns))
		summary[0] = "Total Bills"
		summary[1] = len(report.Bills)
		summary[len(columns)-1] = money.Sum(totals...)
		if err := setRow(f, title, len(report.Bills)+3, summary); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// InventoryPerformance renders lifetime sales per inventory item.
func InventoryPerformance(rows []domain.ItemPerformance) (*excelize.File, error) {
	const title = "Inventory Performance"
	f, err := newSheet(title, inventoryColumns)
	if err != nil {
		return nil, err
	}

	for i, r := range rows {
		margin := money.Sum(r.Item.FinalSellingPricePerUnit, -r.Item.CostPerUnit)
		if err := setRow(f, title, i+2, []interface{}{
			r.Item.ItemName, r.UnitsSold, r.Item.TotalStockUnits, r.Revenue, r.Item.CostPerUnit, money.Mul(margin, r.UnitsSold),
		}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func newSheet(title string, columns []column) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", title); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headers := make([]interface{}, 0, len(columns))
	for i, c := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(title, name, name, c.width); err != nil {
			return nil, err
		}
		headers = append(headers, c.header)
	}
	if err := setRow(f, title, 1, headers); err != nil {
		return nil, err
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func itemsDetail(items []domain.BillLineItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s | qty: %v | rate: %v | fare: %v | subtotal: %v", item.Name, item.Qty, item.Rate, item.Fare, item.Subtotal))
	}
	return strings.Join(lines, "\n")
}

func paymentsDetail(payments []domain.CreditPayment, loc *time.Location) string {
	lines := make([]string, 0, len(payments))
	for _, p := range payments {
		lines = append(lines, fmt.Sprintf("%s | %s | %v", p.CreatedAt.In(loc).Format(dateLayout), p.Mode, p.Amount))
	}
	return strings.Join(lines, "\n")
}
