package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/billing"
	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/xid"
)

// CreateBill prices the cart against the shop's current inventory, checks
// the payment split and commits the bill, its line items, the stock
// deductions and any credit entry as one unit.
func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (domain.Bill, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.Bill{}, err
	}

	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		return domain.Bill{}, store.Invalid("customer_name is required")
	}

	inventory, err := s.repo.ListInventoryItems(ctx, actor.ShopID)
	if err != nil {
		return domain.Bill{}, err
	}
	items := make(map[string]domain.InventoryItem, len(inventory))
	for _, item := range inventory {
		items[item.ID] = item
	}

	priced, err := billing.PriceCart(req.Items, items)
	if err != nil {
		return domain.Bill{}, err
	}
	split, mode, err := billing.ValidateSplit(priced.Total, req.PaymentSplit)
	if err != nil {
		return domain.Bill{}, err
	}

	// The mobile only matters to a credit entry and is dropped otherwise.
	var mobile string
	if split.Udhar > 0 {
		mobile = strings.TrimSpace(req.CustomerMobile)
		if mobile == "" {
			return domain.Bill{}, store.Invalid("customer_mobile is required when udhar amount is greater than 0")
		}
		mobile, err = s.normalizePhone(mobile)
		if err != nil {
			return domain.Bill{}, err
		}
	}

	now := s.now().UTC()
	bill := domain.Bill{
		ID:             xid.New(),
		ShopID:         actor.ShopID,
		BillNumber:     xid.BillNumber(now),
		Items:          make([]domain.BillLineItem, 0, len(priced.Lines)),
		TotalAmount:    priced.Total,
		PaymentMode:    mode,
		PaymentSplit:   split,
		CustomerName:   customerName,
		CustomerMobile: mobile,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
	}
	for _, line := range priced.Lines {
		bill.Items = append(bill.Items, line.BillLineItem(xid.New(), bill.ID, actor.ShopID, now))
	}

	unit := store.BillUnit{Bill: bill, Deductions: priced.Deductions}
	if split.Udhar > 0 {
		unit.Credit = &domain.CreditEntry{
			ID:             xid.New(),
			ShopID:         actor.ShopID,
			BillID:         bill.ID,
			BillNumber:     bill.BillNumber,
			CustomerName:   customerName,
			CustomerMobile: mobile,
			OriginalAmount: split.Udhar,
			PendingAmount:  split.Udhar,
			Payments:       []domain.CreditPayment{},
			Status:         domain.CreditPending,
			CreatedBy:      actor.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	created, err := s.repo.CreateBill(ctx, unit)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			s.logger.Warn("bill lost stock race",
				zap.String("shop_id", actor.ShopID),
				zap.String("bill_number", bill.BillNumber),
				zap.Int("inventory_lines", len(priced.Deductions)),
			)
		}
		return domain.Bill{}, err
	}

	s.logger.Info("bill created",
		zap.String("shop_id", actor.ShopID),
		zap.String("bill_number", created.BillNumber),
		zap.Float64("total", created.TotalAmount),
		zap.String("mode", string(created.PaymentMode)),
		zap.Bool("credit_opened", unit.Credit != nil),
	)
	s.invalidateSummary(ctx, actor.ShopID)
	return *created, nil
}

func (s *Service) ListBills(ctx context.Context, query domain.BillListQuery) (domain.BillListResponse, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.BillListResponse{}, err
	}
	from, to, err := s.dateRange(query.StartDate, query.EndDate)
	if err != nil {
		return domain.BillListResponse{}, err
	}

	bills, err := s.repo.ListBills(ctx, store.BillFilter{
		ShopID: actor.ShopID,
		From:   from,
		To:     to,
		Limit:  clampLimit(query.Limit, 20, 100),
	})
	if err != nil {
		return domain.BillListResponse{}, err
	}
	return domain.BillListResponse{Bills: bills}, nil
}

func (s *Service) GetBill(ctx context.Context, billID string) (domain.Bill, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return domain.Bill{}, store.Invalid("bill id is required")
	}

	bill, err := s.repo.GetBill(ctx, actor.ShopID, billID)
	if err != nil {
		return domain.Bill{}, err
	}
	return *bill, nil
}
