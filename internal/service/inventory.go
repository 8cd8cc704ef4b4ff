package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/costing"
	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/xid"
)

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (domain.InventoryItem, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	breakdown, err := costing.Compute(costing.Input{
		ItemName:        req.ItemName,
		TotalStockUnits: req.TotalStockUnits,
		MaterialCost:    req.MaterialCost,
		FuelCost:        req.FuelCost,
		ProfitPerUnit:   req.ProfitPerUnit,
		Labour:          req.LabourDetails,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	employees, err := s.checkLabourEmployees(ctx, actor.ShopID, breakdown.Labour)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	now := s.now().UTC()
	item := domain.InventoryItem{
		ID:        xid.New(),
		ShopID:    actor.ShopID,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	breakdown.Apply(&item)

	accrual := s.labourAccrual(actor, item.ID, costing.LabourDelta(nil, item.LabourDetails), 1, now)
	created, err := s.repo.CreateInventoryItem(ctx, item, accrual)
	if errors.Is(err, store.ErrLimitReached) {
		return domain.InventoryItem{}, fmt.Errorf("a shop can hold at most %d inventory items: %w", store.MaxInventoryItemsPerShop, err)
	}
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logger.Info("inventory item created",
		zap.String("shop_id", actor.ShopID),
		zap.String("item_id", created.ID),
		zap.Float64("cost_per_unit", created.CostPerUnit),
		zap.Int("labour_accruals", len(accrual.Entries)),
	)
	withEmployeeNames(created, employees)
	return *created, nil
}

func (s *Service) ListInventoryItems(ctx context.Context) (domain.InventoryListResponse, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.InventoryListResponse{}, err
	}

	items, err := s.repo.ListInventoryItems(ctx, actor.ShopID)
	if err != nil {
		return domain.InventoryListResponse{}, err
	}
	names, err := s.employeeNames(ctx, actor.ShopID)
	if err != nil {
		return domain.InventoryListResponse{}, err
	}
	for i := range items {
		withEmployeeNames(&items[i], names)
	}
	return domain.InventoryListResponse{Items: items, Limit: store.MaxInventoryItemsPerShop}, nil
}

func (s *Service) GetInventoryItem(ctx context.Context, itemID string) (domain.InventoryItem, error) {
	actor, err := s.shopActor(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	item, err := s.repo.GetInventoryItem(ctx, actor.ShopID, strings.TrimSpace(itemID))
	if err != nil {
		return domain.InventoryItem{}, err
	}
	names, err := s.employeeNames(ctx, actor.ShopID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	withEmployeeNames(item, names)
	return *item, nil
}

// UpdateInventoryItem merges the provided fields over the stored item and
// recomputes its costing. The merge runs inside the store's unit against the
// locked row, so stock sold meanwhile is kept and only the per-employee
// labour change against that row is accrued.
func (s *Service) UpdateInventoryItem(ctx context.Context, itemID string, req domain.InventoryItemUpdateRequest) (domain.InventoryItem, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	if req.LabourDetails != nil {
		labour, err := costing.Labour(*req.LabourDetails)
		if err != nil {
			return domain.InventoryItem{}, err
		}
		if _, err := s.checkLabourEmployees(ctx, actor.ShopID, labour); err != nil {
			return domain.InventoryItem{}, err
		}
	}

	now := s.now().UTC()
	var deltas int
	updated, err := s.repo.UpdateInventoryItem(ctx, actor.ShopID, strings.TrimSpace(itemID),
		func(stored domain.InventoryItem) (domain.InventoryItem, store.LabourAccrual, error) {
			breakdown, err := costing.Compute(mergeItemUpdate(stored, req))
			if err != nil {
				return domain.InventoryItem{}, store.LabourAccrual{}, err
			}
			item := stored
			breakdown.Apply(&item)
			item.UpdatedAt = now

			delta := costing.LabourDelta(stored.LabourDetails, item.LabourDetails)
			deltas = len(delta)
			return item, s.labourAccrual(actor, item.ID, delta, 1, now), nil
		})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logger.Info("inventory item updated",
		zap.String("shop_id", actor.ShopID),
		zap.String("item_id", updated.ID),
		zap.Int("labour_deltas", deltas),
	)
	names, err := s.employeeNames(ctx, actor.ShopID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	withEmployeeNames(updated, names)
	return *updated, nil
}

func mergeItemUpdate(stored domain.InventoryItem, req domain.InventoryItemUpdateRequest) costing.Input {
	in := costing.Input{
		ItemName:        stored.ItemName,
		TotalStockUnits: stored.TotalStockUnits,
		MaterialCost:    stored.MaterialCost,
		FuelCost:        stored.FuelCost,
		ProfitPerUnit:   stored.ProfitPerUnit,
		Labour:          labourInputs(stored.LabourDetails),
	}
	if req.ItemName != nil {
		in.ItemName = *req.ItemName
	}
	if req.TotalStockUnits != nil {
		in.TotalStockUnits = *req.TotalStockUnits
	}
	if req.MaterialCost != nil {
		in.MaterialCost = *req.MaterialCost
	}
	if req.FuelCost != nil {
		in.FuelCost = *req.FuelCost
	}
	if req.ProfitPerUnit != nil {
		in.ProfitPerUnit = *req.ProfitPerUnit
	}
	if req.LabourDetails != nil {
		in.Labour = *req.LabourDetails
	}
	return in
}

// DeleteInventoryItem reverses the labour of the row being deleted and
// removes it.
func (s *Service) DeleteInventoryItem(ctx context.Context, itemID string) error {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(itemID)
	now := s.now().UTC()
	var reversals int
	err = s.repo.DeleteInventoryItem(ctx, actor.ShopID, id, func(stored domain.InventoryItem) store.LabourAccrual {
		accrual := s.labourAccrual(actor, stored.ID, costing.LabourDelta(nil, stored.LabourDetails), -1, now)
		reversals = len(accrual.Entries)
		return accrual
	})
	if err != nil {
		return err
	}

	s.logger.Info("inventory item deleted",
		zap.String("shop_id", actor.ShopID),
		zap.String("item_id", id),
		zap.Int("labour_reversals", reversals),
	)
	return nil
}

// labourAccrual scales entries by multiplier. Audit rows are written for
// positive amounts only, and never for a reversal.
func (s *Service) labourAccrual(actor domain.Actor, itemID string, entries []domain.LabourDetail, multiplier float64, at time.Time) store.LabourAccrual {
	accrual := store.LabourAccrual{Entries: costing.Scale(entries, multiplier)}
	if multiplier <= 0 {
		return accrual
	}
	for _, entry := range accrual.Entries {
		if entry.LabourCost <= 0 {
			continue
		}
		accrual.Audit = append(accrual.Audit, domain.SalaryEntry{
			ID:            xid.New(),
			ShopID:        actor.ShopID,
			EmployeeID:    entry.EmployeeID,
			Amount:        entry.LabourCost,
			Type:          domain.SalaryTypeLabour,
			Period:        domain.SalaryPeriodLabour,
			EffectiveDate: at,
			CreatedBy:     actor.UserID,
			CreatedAt:     at,
		})
	}
	if len(accrual.Entries) > 0 {
		s.logger.Debug("labour accrual prepared",
			zap.String("item_id", itemID),
			zap.Float64("multiplier", multiplier),
			zap.Int("entries", len(accrual.Entries)),
		)
	}
	return accrual
}

// checkLabourEmployees requires every labour entry to reference an active
// employee of the shop and returns their names by user id.
func (s *Service) checkLabourEmployees(ctx context.Context, shopID string, labour []domain.LabourDetail) (map[string]string, error) {
	names, err := s.employeeNames(ctx, shopID)
	if err != nil {
		return nil, err
	}
	for i, entry := range labour {
		if _, ok := names[entry.EmployeeID]; !ok {
			return nil, store.Invalid("labour entry %d: employee %s is not an active employee of this shop", i+1, entry.EmployeeID)
		}
	}
	return names, nil
}

func (s *Service) employeeNames(ctx context.Context, shopID string) (map[string]string, error) {
	employees, err := s.repo.ListEmployees(ctx, shopID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(employees))
	for _, employee := range employees {
		names[employee.ID] = employee.Name
	}
	return names, nil
}

func withEmployeeNames(item *domain.InventoryItem, names map[string]string) {
	for i := range item.LabourDetails {
		item.LabourDetails[i].EmployeeName = names[item.LabourDetails[i].EmployeeID]
	}
}

func labourInputs(details []domain.LabourDetail) []domain.LabourDetailInput {
	inputs := make([]domain.LabourDetailInput, 0, len(details))
	for _, detail := range details {
		inputs = append(inputs, domain.LabourDetailInput{EmployeeID: detail.EmployeeID, LabourCost: detail.LabourCost})
	}
	return inputs
}
