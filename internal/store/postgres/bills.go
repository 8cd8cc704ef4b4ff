package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const billColumns = `id, shop_id, bill_number, total_amount, payment_mode, cash, online, udhar,
	customer_name, COALESCE(customer_mobile, ''), created_by, created_at`

const lineColumns = `id, bill_id, shop_id, COALESCE(inventory_item_id, ''), manual_item, name, qty, rate,
	fare, subtotal, created_at`

const creditColumns = `id, shop_id, bill_id, bill_number, customer_name, customer_mobile, original_amount,
	pending_amount, settled_amount, payments, status, version, created_by, created_at, updated_at`

func scanBill(row scanner) (*domain.Bill, error) {
	var bill domain.Bill
	var mode string
	if err := row.Scan(&bill.ID, &bill.ShopID, &bill.BillNumber, &bill.TotalAmount, &mode, &bill.PaymentSplit.Cash,
		&bill.PaymentSplit.Online, &bill.PaymentSplit.Udhar, &bill.CustomerName, &bill.CustomerMobile,
		&bill.CreatedBy, &bill.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("bill")
		}
		return nil, err
	}
	bill.PaymentMode = domain.PaymentMode(mode)
	bill.CreatedAt = bill.CreatedAt.UTC()
	return &bill, nil
}

func scanCredit(row scanner) (*domain.CreditEntry, error) {
	var entry domain.CreditEntry
	var payments []byte
	var status string
	if err := row.Scan(&entry.ID, &entry.ShopID, &entry.BillID, &entry.BillNumber, &entry.CustomerName,
		&entry.CustomerMobile, &entry.OriginalAmount, &entry.PendingAmount, &entry.SettledAmount, &payments,
		&status, &entry.Version, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Status = domain.CreditStatus(status)
	entry.Payments = []domain.CreditPayment{}
	if len(payments) > 0 {
		if err := json.Unmarshal(payments, &entry.Payments); err != nil {
			return nil, err
		}
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}

// CreateBill commits the bill, its lines, every stock deduction and the
// credit entry in one transaction. A deduction that would take an item below
// zero fails the whole unit with ErrInsufficientStock.
func (s *Store) CreateBill(ctx context.Context, unit store.BillUnit) (*domain.Bill, error) {
	if len(unit.Bill.Items) == 0 {
		return nil, store.Invalid("bill has no items")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Fixed lock order keeps two bills over the same items from deadlocking.
	itemIDs := make([]string, 0, len(unit.Deductions))
	for itemID := range unit.Deductions {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)
	for _, itemID := range itemIDs {
		qty := unit.Deductions[itemID]
		res, err := tx.ExecContext(ctx, `
			UPDATE inventory_items
			SET total_stock_units = total_stock_units - $1, updated_at = $2
			WHERE id = $3 AND shop_id = $4 AND total_stock_units >= $1
		`, qty, unit.Bill.CreatedAt, itemID, unit.Bill.ShopID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrInsufficientStock
		}
	}

	bill := unit.Bill
	bill.Items = append([]domain.BillLineItem(nil), unit.Bill.Items...)
	bill.ItemIDs = make([]string, 0, len(bill.Items))
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bills (
			id, shop_id, bill_number, total_amount, payment_mode, cash, online, udhar,
			customer_name, customer_mobile, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, bill.ID, bill.ShopID, bill.BillNumber, bill.TotalAmount, string(bill.PaymentMode), bill.PaymentSplit.Cash,
		bill.PaymentSplit.Online, bill.PaymentSplit.Udhar, bill.CustomerName, nullIfEmpty(bill.CustomerMobile),
		bill.CreatedBy, bill.CreatedAt); err != nil {
		return nil, err
	}
	for i := range bill.Items {
		line := &bill.Items[i]
		line.BillID = bill.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (
				id, bill_id, position, shop_id, inventory_item_id, manual_item, name, qty, rate, fare, subtotal, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, line.ID, bill.ID, i, line.ShopID, nullIfEmpty(line.InventoryItemID), line.ManualItem, line.Name,
			line.Qty, line.Rate, line.Fare, line.Subtotal, line.CreatedAt); err != nil {
			return nil, err
		}
		bill.ItemIDs = append(bill.ItemIDs, line.ID)
	}

	if credit := unit.Credit; credit != nil {
		payments, err := json.Marshal(append([]domain.CreditPayment{}, credit.Payments...))
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO credit_entries (`+creditColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, credit.ID, credit.ShopID, credit.BillID, credit.BillNumber, credit.CustomerName, credit.CustomerMobile,
			credit.OriginalAmount, credit.PendingAmount, credit.SettledAmount, string(payments), string(credit.Status),
			credit.Version, credit.CreatedBy, credit.CreatedAt, credit.UpdatedAt); err != nil {
			return nil, mapUniqueViolation(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *Store) GetBill(ctx context.Context, shopID string, billID string) (*domain.Bill, error) {
	bill, err := scanBill(s.db.QueryRowContext(ctx, `
		SELECT `+billColumns+` FROM bills WHERE id = $1 AND shop_id = $2
	`, billID, shopID))
	if err != nil {
		return nil, err
	}
	bills := []domain.Bill{*bill}
	if err := s.attachLines(ctx, bills); err != nil {
		return nil, err
	}
	return &bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, filter store.BillFilter) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE shop_id = $1
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT NULLIF($4::int, 0)
	`, filter.ShopID, nullTime(filter.From), nullTime(filter.To), filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 32)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachLines(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// attachLines loads the line items of every bill with a single query.
func (s *Store) attachLines(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]string, 0, len(bills))
	index := make(map[string]int, len(bills))
	for i := range bills {
		ids = append(ids, bills[i].ID)
		index[bills[i].ID] = i
		bills[i].Items = []domain.BillLineItem{}
		bills[i].ItemIDs = []string{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lineColumns+`
		FROM bill_items
		WHERE bill_id = ANY($1)
		ORDER BY bill_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.BillLineItem
		if err := rows.Scan(&line.ID, &line.BillID, &line.ShopID, &line.InventoryItemID, &line.ManualItem, &line.Name,
			&line.Qty, &line.Rate, &line.Fare, &line.Subtotal, &line.CreatedAt); err != nil {
			return err
		}
		line.CreatedAt = line.CreatedAt.UTC()
		i := index[line.BillID]
		bills[i].Items = append(bills[i].Items, line)
		bills[i].ItemIDs = append(bills[i].ItemIDs, line.ID)
	}
	return rows.Err()
}

// PayCredit locks the entry row, so concurrent payments apply one after
// another and can never drive pending_amount below zero.
func (s *Store) PayCredit(ctx context.Context, shopID string, creditID string, payment domain.CreditPayment) (*domain.CreditEntry, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := scanCredit(tx.QueryRowContext(ctx, `
		SELECT `+creditColumns+`
		FROM credit_entries
		WHERE id = $1 AND shop_id = $2
		FOR UPDATE
	`, creditID, shopID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCreditNotPayable
	}
	if err != nil {
		return nil, err
	}
	if entry.Status != domain.CreditPending {
		return nil, store.ErrCreditNotPayable
	}
	if payment.Amount > entry.PendingAmount {
		return nil, store.Invalid("payment amount %.2f exceeds pending amount %.2f", payment.Amount, entry.PendingAmount)
	}

	entry.PendingAmount = money.Sum(entry.PendingAmount, -payment.Amount)
	entry.SettledAmount = money.Sum(entry.SettledAmount, payment.Amount)
	if entry.PendingAmount <= 0 {
		entry.PendingAmount = 0
		entry.Status = domain.CreditSettled
	}
	entry.Payments = append(entry.Payments, payment)
	entry.Version++
	entry.UpdatedAt = payment.CreatedAt

	payments, err := json.Marshal(entry.Payments)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE credit_entries
		SET pending_amount = $2, settled_amount = $3, payments = $4, status = $5, version = $6, updated_at = $7
		WHERE id = $1
	`, entry.ID, entry.PendingAmount, entry.SettledAmount, string(payments), string(entry.Status), entry.Version,
		entry.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) ListCredits(ctx context.Context, filter store.CreditFilter) ([]domain.CreditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+creditColumns+`
		FROM credit_entries
		WHERE shop_id = $1 AND ($2::text = '' OR status = $2) AND ($3::text = '' OR customer_mobile = $3)
		ORDER BY created_at DESC
		LIMIT NULLIF($4::int, 0)
	`, filter.ShopID, string(filter.Status), filter.CustomerMobile, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CreditEntry, 0, 16)
	for rows.Next() {
		entry, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
