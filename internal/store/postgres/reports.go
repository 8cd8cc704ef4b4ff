package postgres

import (
	"context"
	"time"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
)

func (s *Store) SalesTotals(ctx context.Context, shopID string, from time.Time, to time.Time) (domain.SalesTotals, error) {
	var totals domain.SalesTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cash), 0), COALESCE(SUM(online), 0), COALESCE(SUM(udhar), 0),
			COALESCE(SUM(total_amount), 0)
		FROM bills
		WHERE shop_id = $1 AND created_at >= $2 AND created_at < $3
	`, shopID, from.UTC(), to.UTC()).Scan(&totals.Bills, &totals.Cash, &totals.Online, &totals.Udhar, &totals.Total)
	return totals, err
}

func (s *Store) TopItems(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.TopItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, SUM(qty), SUM(subtotal)
		FROM bill_items
		WHERE shop_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY name
		ORDER BY SUM(qty) DESC, name
		LIMIT NULLIF($4::int, 0)
	`, shopID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TopItem, 0, 16)
	for rows.Next() {
		var item domain.TopItem
		if err := rows.Scan(&item.Name, &item.QuantitySold, &item.Revenue); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SalaryTotals reports what active employees are owed now and the manual
// and labour accruals written within the range.
func (s *Store) SalaryTotals(ctx context.Context, shopID string, from time.Time, to time.Time) (domain.SalaryTotals, error) {
	var totals domain.SalaryTotals
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(salary_due), 0)
		FROM users
		WHERE role = 'employee' AND shop_id = $1 AND is_active = true
	`, shopID).Scan(&totals.SalaryDue); err != nil {
		return domain.SalaryTotals{}, err
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = $4), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $5), 0)
		FROM salary_entries
		WHERE shop_id = $1 AND created_at >= $2 AND created_at < $3
	`, shopID, from.UTC(), to.UTC(), domain.SalaryTypeManual, domain.SalaryTypeLabour).Scan(&totals.ManualSalary, &totals.LabourAccrual)
	if err != nil {
		return domain.SalaryTotals{}, err
	}
	return totals, nil
}

func (s *Store) UnitsSold(ctx context.Context, shopID string) (map[string]domain.TopItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT inventory_item_id, MAX(name), SUM(qty), SUM(subtotal)
		FROM bill_items
		WHERE shop_id = $1 AND inventory_item_id IS NOT NULL
		GROUP BY inventory_item_id
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sold := make(map[string]domain.TopItem)
	for rows.Next() {
		var itemID string
		var agg domain.TopItem
		if err := rows.Scan(&itemID, &agg.Name, &agg.QuantitySold, &agg.Revenue); err != nil {
			return nil, err
		}
		sold[itemID] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sold, nil
}
