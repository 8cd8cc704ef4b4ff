package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/xid"
)

const shopCodeAttempts = 12

func (s *Service) RegisterShop(ctx context.Context, req domain.ShopRegisterRequest) (domain.Shop, error) {
	actor, err := s.actor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.Shop{}, err
	}
	if actor.ShopID != "" {
		return domain.Shop{}, store.Conflict("owner already has a registered shop")
	}

	name := strings.TrimSpace(req.Name)
	shopType := strings.TrimSpace(req.Type)
	gst := strings.ToUpper(strings.TrimSpace(req.GSTNumber))
	if name == "" || shopType == "" || gst == "" || strings.TrimSpace(req.OwnerMobile) == "" {
		return domain.Shop{}, store.Invalid("name, type, gst_number and owner_mobile are required")
	}
	mobile, err := s.normalizePhone(req.OwnerMobile)
	if err != nil {
		return domain.Shop{}, err
	}

	now := s.now().UTC()
	shop := domain.Shop{
		ID:          xid.New(),
		Name:        name,
		Type:        shopType,
		GSTNumber:   gst,
		OwnerID:     actor.UserID,
		OwnerMobile: mobile,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for attempt := 0; attempt < shopCodeAttempts; attempt++ {
		shop.Code = xid.ShopCode()
		created, err := s.repo.CreateShop(ctx, shop)
		if errors.Is(err, store.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return domain.Shop{}, err
		}

		s.logger.Info("shop registered",
			zap.String("shop_id", created.ID),
			zap.String("shop_code", created.Code),
			zap.String("owner_id", actor.UserID),
		)
		return *created, nil
	}

	s.logger.Warn("shop code generation exhausted", zap.String("owner_id", actor.UserID), zap.Int("attempts", shopCodeAttempts))
	return domain.Shop{}, fmt.Errorf("unable to generate unique shop code: %w", store.ErrExhausted)
}

func (s *Service) GetMyShop(ctx context.Context) (domain.Shop, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Shop{}, err
	}
	if actor.ShopID == "" {
		return domain.Shop{}, store.NotFound("shop")
	}

	shop, err := s.repo.GetShop(ctx, actor.ShopID)
	if err != nil {
		return domain.Shop{}, err
	}
	return *shop, nil
}

func (s *Service) UpdateMyShop(ctx context.Context, req domain.ShopUpdateRequest) (domain.Shop, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.Shop{}, err
	}

	existing, err := s.repo.GetShop(ctx, actor.ShopID)
	if err != nil {
		return domain.Shop{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Shop{}, store.Invalid("name cannot be empty")
		}
		updated.Name = name
	}
	if req.Type != nil {
		shopType := strings.TrimSpace(*req.Type)
		if shopType == "" {
			return domain.Shop{}, store.Invalid("type cannot be empty")
		}
		updated.Type = shopType
	}
	if req.OwnerMobile != nil {
		mobile, err := s.normalizePhone(*req.OwnerMobile)
		if err != nil {
			return domain.Shop{}, err
		}
		updated.OwnerMobile = mobile
	}

	saved, err := s.repo.UpdateShop(ctx, updated)
	if err != nil {
		return domain.Shop{}, err
	}
	return *saved, nil
}
