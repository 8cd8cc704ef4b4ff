package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

// PayCredit records a partial or full payment against a pending udhar entry.
// The store applies it to the entry's current persisted state.
func (s *Service) PayCredit(ctx context.Context, creditID string, req domain.CreditPaymentRequest) (domain.CreditEntry, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.CreditEntry{}, err
	}

	creditID = strings.TrimSpace(creditID)
	if creditID == "" {
		return domain.CreditEntry{}, store.Invalid("credit entry id is required")
	}
	amount, err := positiveAmount(req.Amount)
	if err != nil {
		return domain.CreditEntry{}, err
	}
	// Modes are matched exactly, as the request binding does.
	mode := req.Mode
	if mode != domain.CreditModeCash && mode != domain.CreditModeOnline {
		return domain.CreditEntry{}, store.Invalid("mode must be cash or online")
	}

	entry, err := s.repo.PayCredit(ctx, actor.ShopID, creditID, domain.CreditPayment{
		Amount:    amount,
		Mode:      mode,
		CreatedBy: actor.UserID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.CreditEntry{}, err
	}

	s.logger.Info("credit payment recorded",
		zap.String("shop_id", actor.ShopID),
		zap.String("credit_id", entry.ID),
		zap.Float64("amount", amount),
		zap.Float64("pending", entry.PendingAmount),
		zap.String("status", string(entry.Status)),
	)
	return *entry, nil
}

func (s *Service) ListCredits(ctx context.Context, query domain.CreditListQuery) (domain.CreditListResponse, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.CreditListResponse{}, err
	}

	status := domain.CreditStatus(strings.ToUpper(strings.TrimSpace(query.Status)))
	switch status {
	case "":
		status = domain.CreditPending
	case domain.CreditPending, domain.CreditSettled:
	default:
		return domain.CreditListResponse{}, store.Invalid("status must be PENDING or SETTLED")
	}

	filter := store.CreditFilter{
		ShopID: actor.ShopID,
		Status: status,
		Limit:  clampLimit(query.Limit, 50, 200),
	}
	if mobile := strings.TrimSpace(query.CustomerMobile); mobile != "" {
		filter.CustomerMobile, err = s.normalizePhone(mobile)
		if err != nil {
			return domain.CreditListResponse{}, err
		}
	}

	entries, err := s.repo.ListCredits(ctx, filter)
	if err != nil {
		return domain.CreditListResponse{}, err
	}
	return domain.CreditListResponse{Entries: entries}, nil
}

// CreditsByCustomer returns every entry, pending or settled, for one mobile.
func (s *Service) CreditsByCustomer(ctx context.Context, mobile string) (domain.CreditCustomerResponse, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.CreditCustomerResponse{}, err
	}
	normalized, err := s.normalizePhone(mobile)
	if err != nil {
		return domain.CreditCustomerResponse{}, err
	}

	entries, err := s.repo.ListCredits(ctx, store.CreditFilter{ShopID: actor.ShopID, CustomerMobile: normalized})
	if err != nil {
		return domain.CreditCustomerResponse{}, err
	}

	pending := make([]float64, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == domain.CreditPending {
			pending = append(pending, entry.PendingAmount)
		}
	}
	return domain.CreditCustomerResponse{
		CustomerMobile: normalized,
		TotalPending:   money.Sum(pending...),
		Entries:        entries,
	}, nil
}

func (s *Service) CreditSummary(ctx context.Context) (domain.CreditSummary, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.CreditSummary{}, err
	}

	entries, err := s.repo.ListCredits(ctx, store.CreditFilter{ShopID: actor.ShopID, Status: domain.CreditPending})
	if err != nil {
		return domain.CreditSummary{}, err
	}

	customers := make(map[string]struct{}, len(entries))
	pending := make([]float64, 0, len(entries))
	for _, entry := range entries {
		customers[entry.CustomerMobile] = struct{}{}
		pending = append(pending, entry.PendingAmount)
	}
	return domain.CreditSummary{
		TotalPending:  money.Sum(pending...),
		CustomerCount: len(customers),
		EntryCount:    len(entries),
	}, nil
}
