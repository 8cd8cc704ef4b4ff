package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const (
	ReportAllBills      = "all"
	ReportCurrentMonth  = "current-month"
	ReportPreviousMonth = "previous-month"
	ReportYear          = "year"
)

// BillReport gathers the bills for one export range together with their
// credit entries and the names of whoever billed them. year is only read
// for ReportYear; 0 means the current year.
func (s *Service) BillReport(ctx context.Context, kind string, year int) (domain.BillReport, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.BillReport{}, err
	}

	now := s.now().In(s.settings.Location)
	report := domain.BillReport{Detailed: true}
	var from, to time.Time
	switch strings.TrimSpace(kind) {
	case "", ReportAllBills:
		report.Title = "Bills"
		report.Filename = fmt.Sprintf("bills-%s.xlsx", now.Format(dayLayout))
		report.Detailed = false
	case ReportCurrentMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.settings.Location)
		to = from.AddDate(0, 1, 0)
		report.Title = "This Month Bills"
		report.Filename = fmt.Sprintf("bills-month-%d-%d.xlsx", int(from.Month()), from.Year())
	case ReportPreviousMonth:
		to = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.settings.Location)
		from = to.AddDate(0, -1, 0)
		report.Title = "Previous Month Bills"
		report.Filename = fmt.Sprintf("bills-prev-month-%d-%d.xlsx", int(from.Month()), from.Year())
	case ReportYear:
		if year == 0 {
			year = now.Year()
		}
		if year < 2000 || year > 9999 {
			return domain.BillReport{}, store.Invalid("year must be between 2000 and 9999")
		}
		from = time.Date(year, time.January, 1, 0, 0, 0, 0, s.settings.Location)
		to = from.AddDate(1, 0, 0)
		report.Title = fmt.Sprintf("Bills %d", year)
		report.Filename = fmt.Sprintf("bills-year-%d.xlsx", year)
	default:
		return domain.BillReport{}, store.Invalid("unknown bill export %q", kind)
	}

	filter := store.BillFilter{ShopID: actor.ShopID}
	if !from.IsZero() {
		start, end := from.UTC(), to.UTC()
		filter.From, filter.To = &start, &end
	}
	report.Bills, err = s.repo.ListBills(ctx, filter)
	if err != nil {
		return domain.BillReport{}, err
	}

	credits, err := s.repo.ListCredits(ctx, store.CreditFilter{ShopID: actor.ShopID})
	if err != nil {
		return domain.BillReport{}, err
	}
	report.Credits = make(map[string]domain.CreditEntry, len(credits))
	for _, entry := range credits {
		report.Credits[entry.BillID] = entry
	}

	report.BilledBy, err = s.employeeNames(ctx, actor.ShopID)
	if err != nil {
		return domain.BillReport{}, err
	}
	if owner, err := s.repo.GetUser(ctx, actor.UserID); err == nil {
		report.BilledBy[owner.ID] = owner.Name
	}
	return report, nil
}

// InventoryReport pairs each inventory item with its lifetime sales.
func (s *Service) InventoryReport(ctx context.Context) ([]domain.ItemPerformance, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListInventoryItems(ctx, actor.ShopID)
	if err != nil {
		return nil, err
	}
	sold, err := s.repo.UnitsSold(ctx, actor.ShopID)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ItemPerformance, 0, len(items))
	for _, item := range items {
		sale := sold[item.ID]
		rows = append(rows, domain.ItemPerformance{
			Item:      item,
			UnitsSold: sale.QuantitySold,
			Revenue:   sale.Revenue,
		})
	}
	return rows, nil
}
