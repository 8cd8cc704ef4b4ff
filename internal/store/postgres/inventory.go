package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const itemColumns = `id, shop_id, item_name, total_stock_units, material_cost, fuel_cost, labour_details,
	cost_of_labour, total_cost, cost_per_unit, profit_per_unit, final_selling_price_per_unit,
	created_by, created_at, updated_at`

func scanItem(row scanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	var labour []byte
	if err := row.Scan(&item.ID, &item.ShopID, &item.ItemName, &item.TotalStockUnits, &item.MaterialCost,
		&item.FuelCost, &labour, &item.CostOfLabour, &item.TotalCost, &item.CostPerUnit, &item.ProfitPerUnit,
		&item.FinalSellingPricePerUnit, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("inventory item")
		}
		return nil, err
	}
	item.LabourDetails = []domain.LabourDetail{}
	if len(labour) > 0 {
		if err := json.Unmarshal(labour, &item.LabourDetails); err != nil {
			return nil, err
		}
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

// labourJSON stores only ids and costs. Display names are resolved on read.
func labourJSON(details []domain.LabourDetail) (string, error) {
	stored := make([]domain.LabourDetail, 0, len(details))
	for _, d := range details {
		stored = append(stored, domain.LabourDetail{EmployeeID: d.EmployeeID, LabourCost: d.LabourCost})
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// CreateInventoryItem locks the shop row so concurrent creates see each
// other's count.
func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem, accrual store.LabourAccrual) (*domain.InventoryItem, error) {
	labour, err := labourJSON(item.LabourDetails)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var shopID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM shops WHERE id = $1 FOR UPDATE`, item.ShopID).Scan(&shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("shop")
	}
	if err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_items WHERE shop_id = $1`, item.ShopID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= store.MaxInventoryItemsPerShop {
		return nil, store.ErrLimitReached
	}

	created, err := scanItem(tx.QueryRowContext(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING `+itemColumns,
		item.ID, item.ShopID, item.ItemName, item.TotalStockUnits, item.MaterialCost, item.FuelCost, labour,
		item.CostOfLabour, item.TotalCost, item.CostPerUnit, item.ProfitPerUnit, item.FinalSellingPricePerUnit,
		item.CreatedBy, item.CreatedAt, item.UpdatedAt))
	if err != nil {
		return nil, err
	}
	if err := applyAccrual(ctx, tx, item.ShopID, accrual); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, shopID string, itemID string) (*domain.InventoryItem, error) {
	return scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 AND shop_id = $2
	`, itemID, shopID))
}

func (s *Store) ListInventoryItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM inventory_items
		WHERE shop_id = $1
		ORDER BY created_at DESC, item_name
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, store.MaxInventoryItemsPerShop)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// lockItem reads the item inside tx and holds its row lock until tx ends, so
// bills touching its stock wait for the edit.
func lockItem(ctx context.Context, tx *sql.Tx, shopID string, itemID string) (*domain.InventoryItem, error) {
	return scanItem(tx.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 AND shop_id = $2 FOR UPDATE
	`, itemID, shopID))
}

func (s *Store) UpdateInventoryItem(ctx context.Context, shopID string, itemID string, edit store.ItemEdit) (*domain.InventoryItem, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := lockItem(ctx, tx, shopID, itemID)
	if err != nil {
		return nil, err
	}
	item, accrual, err := edit(*stored)
	if err != nil {
		return nil, err
	}
	labour, err := labourJSON(item.LabourDetails)
	if err != nil {
		return nil, err
	}

	updated, err := scanItem(tx.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET item_name = $3, total_stock_units = $4, material_cost = $5, fuel_cost = $6, labour_details = $7,
			cost_of_labour = $8, total_cost = $9, cost_per_unit = $10, profit_per_unit = $11,
			final_selling_price_per_unit = $12, updated_at = $13
		WHERE id = $1 AND shop_id = $2
		RETURNING `+itemColumns,
		stored.ID, stored.ShopID, item.ItemName, item.TotalStockUnits, item.MaterialCost, item.FuelCost, labour,
		item.CostOfLabour, item.TotalCost, item.CostPerUnit, item.ProfitPerUnit, item.FinalSellingPricePerUnit,
		item.UpdatedAt))
	if err != nil {
		return nil, err
	}
	if err := applyAccrual(ctx, tx, shopID, accrual); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteInventoryItem removes the item. Bill lines keep their copy of the
// item name and id.
func (s *Store) DeleteInventoryItem(ctx context.Context, shopID string, itemID string, remove store.ItemRemoval) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := lockItem(ctx, tx, shopID, itemID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1 AND shop_id = $2`, itemID, shopID); err != nil {
		return err
	}
	if err := applyAccrual(ctx, tx, shopID, remove(*stored)); err != nil {
		return err
	}
	return tx.Commit()
}
