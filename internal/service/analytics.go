package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/cache"
	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
)

type period struct {
	key   string
	title string
	start time.Time
	end   time.Time
}

// periods returns today, this week (from Monday), this month and this year
// in the configured location.
func (s *Service) periods(now time.Time) []period {
	local := now.In(s.settings.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.settings.Location)
	fromMonday := (int(day.Weekday()) + 6) % 7
	week := day.AddDate(0, 0, -fromMonday)
	month := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.settings.Location)
	year := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, s.settings.Location)

	return []period{
		{key: "daily", title: "Today", start: day, end: day.AddDate(0, 0, 1)},
		{key: "weekly", title: "This Week", start: week, end: week.AddDate(0, 0, 7)},
		{key: "monthly", title: "This Month", start: month, end: month.AddDate(0, 1, 0)},
		{key: "yearly", title: "This Year", start: year, end: year.AddDate(1, 0, 0)},
	}
}

// SalesSummary returns revenue cards and a 7 day chart. Results are cached
// per shop and dropped whenever a bill is created.
func (s *Service) SalesSummary(ctx context.Context) (domain.SalesSummary, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	key := cache.SalesSummaryKey(actor.ShopID)
	cached, ok, err := s.summaries.Get(ctx, key)
	if err != nil {
		s.logger.Warn("sales summary cache read failed", zap.String("shop_id", actor.ShopID), zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	periods := s.periods(s.now())
	summary := domain.SalesSummary{
		Cards: make([]domain.SalesCard, 0, len(periods)),
		Chart: make([]domain.SalesPoint, 0, 7),
	}
	for _, p := range periods {
		totals, err := s.repo.SalesTotals(ctx, actor.ShopID, p.start.UTC(), p.end.UTC())
		if err != nil {
			return domain.SalesSummary{}, err
		}
		summary.Cards = append(summary.Cards, domain.SalesCard{
			Key:          p.key,
			Title:        p.title,
			TotalRevenue: totals.Total,
			BillCount:    totals.Bills,
		})
	}

	today := periods[0].start
	for i := 6; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		totals, err := s.repo.SalesTotals(ctx, actor.ShopID, start.UTC(), start.AddDate(0, 0, 1).UTC())
		if err != nil {
			return domain.SalesSummary{}, err
		}
		summary.Chart = append(summary.Chart, domain.SalesPoint{
			Date:      start.Format(dayLayout),
			Revenue:   totals.Total,
			BillCount: totals.Bills,
		})
	}

	if err := s.summaries.Set(ctx, key, &summary, s.settings.SummaryTTL); err != nil {
		s.logger.Warn("sales summary cache write failed", zap.String("shop_id", actor.ShopID), zap.Error(err))
	}
	return summary, nil
}

// RevenueBreakdown splits revenue by payment channel. Bounds are inclusive
// days and default to the current month.
func (s *Service) RevenueBreakdown(ctx context.Context, startDate string, endDate string) (domain.RevenueBreakdown, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}
	from, to, err := s.rangeOrMonth(startDate, endDate)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}

	totals, err := s.repo.SalesTotals(ctx, actor.ShopID, from, to)
	if err != nil {
		return domain.RevenueBreakdown{}, err
	}
	return domain.RevenueBreakdown{
		StartDate: from.In(s.settings.Location).Format(dayLayout),
		EndDate:   to.In(s.settings.Location).AddDate(0, 0, -1).Format(dayLayout),
		Totals:    totals,
	}, nil
}

func (s *Service) TopItems(ctx context.Context, startDate string, endDate string, limit int) (domain.TopItemsResponse, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.TopItemsResponse{}, err
	}
	from, to, err := s.rangeOrMonth(startDate, endDate)
	if err != nil {
		return domain.TopItemsResponse{}, err
	}

	items, err := s.repo.TopItems(ctx, actor.ShopID, from, to, clampLimit(limit, 10, 25))
	if err != nil {
		return domain.TopItemsResponse{}, err
	}
	return domain.TopItemsResponse{Items: items}, nil
}

// SalarySummary reports the shop's outstanding wages and this year's
// manual and labour accruals.
func (s *Service) SalarySummary(ctx context.Context) (domain.SalarySummary, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.SalarySummary{}, err
	}

	year := s.periods(s.now())[3]
	totals, err := s.repo.SalaryTotals(ctx, actor.ShopID, year.start.UTC(), year.end.UTC())
	if err != nil {
		return domain.SalarySummary{}, err
	}
	return domain.SalarySummary{
		SalaryTotals: totals,
		TotalExpense: money.Sum(totals.ManualSalary, totals.LabourAccrual),
		Year:         year.start.Year(),
	}, nil
}

func (s *Service) rangeOrMonth(startDate string, endDate string) (time.Time, time.Time, error) {
	from, to, err := s.dateRange(startDate, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	month := s.periods(s.now())[2]
	if from == nil {
		start := month.start.UTC()
		from = &start
	}
	if to == nil {
		end := month.end.UTC()
		to = &end
	}
	if !from.Before(*to) {
		return time.Time{}, time.Time{}, errRangeOrder
	}
	return *from, *to, nil
}
