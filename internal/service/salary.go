package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/xid"
)

// AddSalaryAccrual grants a manual day or month wage to an employee.
func (s *Service) AddSalaryAccrual(ctx context.Context, employeeUserID string, req domain.SalaryAccrualRequest) (domain.SalaryResponse, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.SalaryResponse{}, err
	}

	amount, err := positiveAmount(req.Amount)
	if err != nil {
		return domain.SalaryResponse{}, err
	}
	period := strings.ToLower(strings.TrimSpace(req.Period))
	if period == "" {
		period = domain.SalaryPeriodMonth
	}
	if period != domain.SalaryPeriodDay && period != domain.SalaryPeriodMonth {
		return domain.SalaryResponse{}, store.Invalid("period must be day or month")
	}

	now := s.now().UTC()
	employee, err := s.repo.AdjustSalaryDue(ctx, actor.ShopID, strings.TrimSpace(employeeUserID), amount, &domain.SalaryEntry{
		ID:            xid.New(),
		ShopID:        actor.ShopID,
		EmployeeID:    strings.TrimSpace(employeeUserID),
		Amount:        amount,
		Type:          domain.SalaryTypeManual,
		Period:        period,
		EffectiveDate: now,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
	})
	if err != nil {
		return domain.SalaryResponse{}, err
	}

	s.logger.Info("salary accrued",
		zap.String("shop_id", actor.ShopID),
		zap.String("employee_id", employee.ID),
		zap.Float64("amount", amount),
		zap.String("period", period),
	)
	return domain.SalaryResponse{EmployeeID: employee.ID, SalaryDue: employee.SalaryDue}, nil
}

// PayEmployee lowers salary_due by the paid amount, never below zero.
func (s *Service) PayEmployee(ctx context.Context, employeeUserID string, req domain.SalaryPaymentRequest) (domain.SalaryResponse, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.SalaryResponse{}, err
	}

	amount, err := positiveAmount(req.Amount)
	if err != nil {
		return domain.SalaryResponse{}, err
	}

	employee, err := s.repo.AdjustSalaryDue(ctx, actor.ShopID, strings.TrimSpace(employeeUserID), -amount, nil)
	if err != nil {
		return domain.SalaryResponse{}, err
	}

	s.logger.Info("salary paid",
		zap.String("shop_id", actor.ShopID),
		zap.String("employee_id", employee.ID),
		zap.Float64("amount", amount),
		zap.Float64("salary_due", employee.SalaryDue),
	)
	return domain.SalaryResponse{EmployeeID: employee.ID, SalaryDue: employee.SalaryDue}, nil
}

// ListSalaryEntries returns the audit trail newest first. Employees only see
// their own entries.
func (s *Service) ListSalaryEntries(ctx context.Context, employeeUserID string, limit int) ([]domain.SalaryEntry, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return nil, err
	}

	employeeUserID = strings.TrimSpace(employeeUserID)
	if actor.Role == domain.RoleEmployee {
		employeeUserID = actor.UserID
	}
	return s.repo.ListSalaryEntries(ctx, actor.ShopID, employeeUserID, clampLimit(limit, 50, 200))
}

func positiveAmount(raw float64) (float64, error) {
	if !money.Finite(raw) {
		return 0, store.Invalid("amount must be greater than 0")
	}
	amount := money.Round2(raw)
	if amount <= 0 {
		return 0, store.Invalid("amount must be greater than 0")
	}
	return amount, nil
}
