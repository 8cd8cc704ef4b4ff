package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const shopColumns = `id, code, name, type, gst_number, owner_id, owner_mobile, created_at, updated_at`

const userColumns = `id, role, name, COALESCE(email, ''), COALESCE(phone_number, ''), COALESCE(shop_id, ''),
	COALESCE(employee_id, ''), COALESCE(password_hash, ''), COALESCE(google_subject, ''),
	salary_due, is_active, created_at, updated_at`

const salaryEntryColumns = `id, shop_id, employee_id, amount, type, period, effective_date, created_by, created_at`

func scanShop(row scanner) (*domain.Shop, error) {
	var shop domain.Shop
	if err := row.Scan(&shop.ID, &shop.Code, &shop.Name, &shop.Type, &shop.GSTNumber, &shop.OwnerID,
		&shop.OwnerMobile, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("shop")
		}
		return nil, err
	}
	shop.CreatedAt = shop.CreatedAt.UTC()
	shop.UpdatedAt = shop.UpdatedAt.UTC()
	return &shop, nil
}

func scanUser(row scanner, entity string) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.Role, &user.Name, &user.Email, &user.PhoneNumber, &user.ShopID,
		&user.EmployeeID, &user.PasswordHash, &user.GoogleSubject, &user.SalaryDue, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound(entity)
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

// CreateShop inserts the shop and links it to its owner in one transaction.
func (s *Store) CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var ownerShop string
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(shop_id, '') FROM users WHERE id = $1 FOR UPDATE
	`, shop.OwnerID).Scan(&ownerShop)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("owner")
	}
	if err != nil {
		return nil, err
	}
	if ownerShop != "" {
		return nil, store.Conflict("owner already has a shop")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shops (`+shopColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, shop.ID, shop.Code, shop.Name, shop.Type, shop.GSTNumber, shop.OwnerID, shop.OwnerMobile,
		shop.CreatedAt, shop.UpdatedAt); err != nil {
		return nil, mapUniqueViolation(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET shop_id = $1, updated_at = $2 WHERE id = $3
	`, shop.ID, shop.CreatedAt, shop.OwnerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := shop
	return &created, nil
}

func (s *Store) GetShop(ctx context.Context, shopID string) (*domain.Shop, error) {
	return scanShop(s.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, shopID))
}

func (s *Store) GetShopByCode(ctx context.Context, code string) (*domain.Shop, error) {
	return scanShop(s.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE code = $1`, code))
}

func (s *Store) UpdateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	return scanShop(s.db.QueryRowContext(ctx, `
		UPDATE shops
		SET name = $2, type = $3, owner_mobile = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+shopColumns, shop.ID, shop.Name, shop.Type, shop.OwnerMobile))
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, role, name, email, phone_number, shop_id, employee_id, password_hash,
			google_subject, salary_due, is_active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, user.ID, user.Role, user.Name, nullIfEmpty(user.Email), nullIfEmpty(user.PhoneNumber),
		nullIfEmpty(user.ShopID), nullIfEmpty(user.EmployeeID), nullIfEmpty(user.PasswordHash),
		nullIfEmpty(user.GoogleSubject), user.SalaryDue, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	created := user
	return &created, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID), "user")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, store.NotFound("user")
	}
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email), "user")
}

func (s *Store) GetEmployeeByCode(ctx context.Context, shopID string, employeeID string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'employee' AND shop_id = $1 AND employee_id = $2
	`, shopID, employeeID), "employee")
}

// UpdateUser rewrites the profile fields. salary_due is left to
// AdjustSalaryDue and labour accruals.
func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	updated, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, phone_number = $4, shop_id = $5, employee_id = $6,
			password_hash = $7, google_subject = $8, is_active = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Name, nullIfEmpty(user.Email), nullIfEmpty(user.PhoneNumber), nullIfEmpty(user.ShopID),
		nullIfEmpty(user.EmployeeID), nullIfEmpty(user.PasswordHash), nullIfEmpty(user.GoogleSubject), user.IsActive), "user")
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return updated, nil
}

func (s *Store) ListEmployees(ctx context.Context, shopID string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'employee' AND shop_id = $1 AND is_active = true
		ORDER BY created_at DESC, name
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]domain.User, 0, 8)
	for rows.Next() {
		user, err := scanUser(rows, "employee")
		if err != nil {
			return nil, err
		}
		employees = append(employees, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

func (s *Store) AdjustSalaryDue(ctx context.Context, shopID string, userID string, delta float64, entry *domain.SalaryEntry) (*domain.User, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	user, err := scanUser(tx.QueryRowContext(ctx, `
		UPDATE users
		SET salary_due = GREATEST(0, salary_due + $1), updated_at = now()
		WHERE id = $2 AND shop_id = $3 AND role = 'employee'
		RETURNING `+userColumns, delta, userID, shopID), "employee")
	if err != nil {
		return nil, err
	}
	if entry != nil {
		if err := insertSalaryEntry(ctx, tx, *entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) ListSalaryEntries(ctx context.Context, shopID string, employeeID string, limit int) ([]domain.SalaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+salaryEntryColumns+`
		FROM salary_entries
		WHERE shop_id = $1 AND ($2::text = '' OR employee_id = $2)
		ORDER BY created_at DESC
		LIMIT NULLIF($3::int, 0)
	`, shopID, employeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.SalaryEntry, 0, 16)
	for rows.Next() {
		var entry domain.SalaryEntry
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.EmployeeID, &entry.Amount, &entry.Type, &entry.Period,
			&entry.EffectiveDate, &entry.CreatedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.EffectiveDate = entry.EffectiveDate.UTC()
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func insertSalaryEntry(ctx context.Context, tx *sql.Tx, entry domain.SalaryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO salary_entries (`+salaryEntryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.ShopID, entry.EmployeeID, entry.Amount, entry.Type, entry.Period,
		entry.EffectiveDate, entry.CreatedBy, entry.CreatedAt)
	return err
}

// applyAccrual moves salary_due for every entry inside tx. Employees outside
// the shop are skipped.
func applyAccrual(ctx context.Context, tx *sql.Tx, shopID string, accrual store.LabourAccrual) error {
	for _, entry := range accrual.Entries {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET salary_due = GREATEST(0, salary_due + $1), updated_at = now()
			WHERE id = $2 AND shop_id = $3
		`, entry.LabourCost, entry.EmployeeID, shopID); err != nil {
			return err
		}
	}
	for _, audit := range accrual.Audit {
		if err := insertSalaryEntry(ctx, tx, audit); err != nil {
			return err
		}
	}
	return nil
}
