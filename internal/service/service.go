package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/cache"
	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/phone"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("invalid user session")
	ErrInvalidCredentials = errors.New("invalid employee credentials")
)

const dayLayout = "2006-01-02"

var errRangeOrder = store.Invalid("start_date must not be after end_date")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Settings struct {
	Location    *time.Location
	PhoneRegion string
	SummaryTTL  time.Duration
}

type Service struct {
	repo      store.Repository
	summaries cache.SummaryCache
	logger    *zap.Logger
	settings  Settings
	now       func() time.Time
}

func New(repo store.Repository, summaries cache.SummaryCache, logger *zap.Logger, settings Settings) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.PhoneRegion == "" {
		settings.PhoneRegion = phone.DefaultRegion
	}

	return &Service{
		repo:      repo,
		summaries: summaries,
		logger:    logger,
		settings:  settings,
		now:       time.Now,
	}
}

// ResolveActor reloads the session's user so that deactivated or removed
// accounts lose access immediately.
func (s *Service) ResolveActor(ctx context.Context, userID string) (domain.Actor, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Actor{}, ErrUnauthenticated
	}
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Actor{}, ErrUnauthenticated
	}
	if err != nil {
		return domain.Actor{}, err
	}
	if !user.IsActive {
		return domain.Actor{}, ErrUnauthenticated
	}
	return actorOf(*user), nil
}

func actorOf(user domain.User) domain.Actor {
	return domain.Actor{
		UserID: user.ID,
		Role:   user.Role,
		ShopID: user.ShopID,
		Email:  user.Email,
	}
}

func (s *Service) actor(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, ErrUnauthenticated
	}
	if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
		return domain.Actor{}, fmt.Errorf("%w: %s role required", ErrForbidden, strings.Join(roles, " or "))
	}
	return actor, nil
}

// shopActor is actor plus the requirement that the principal belongs to a shop.
func (s *Service) shopActor(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, err := s.actor(ctx, roles...)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.ShopID == "" {
		return domain.Actor{}, store.Invalid("shop is not registered yet")
	}
	return actor, nil
}

func (s *Service) normalizePhone(raw string) (string, error) {
	normalized, err := phone.Normalize(raw, s.settings.PhoneRegion)
	if err != nil {
		return "", store.Invalid("%s", err.Error())
	}
	return normalized, nil
}

func (s *Service) invalidateSummary(ctx context.Context, shopID string) {
	if err := s.summaries.Delete(ctx, cache.SalesSummaryKey(shopID)); err != nil {
		s.logger.Warn("failed to invalidate sales summary", zap.String("shop_id", shopID), zap.Error(err))
	}
}

// dateRange turns inclusive YYYY-MM-DD bounds into a half-open UTC range.
// Empty bounds stay open.
func (s *Service) dateRange(startDate string, endDate string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if startDate = strings.TrimSpace(startDate); startDate != "" {
		day, err := time.ParseInLocation(dayLayout, startDate, s.settings.Location)
		if err != nil {
			return nil, nil, store.Invalid("start_date must use YYYY-MM-DD")
		}
		start := day.UTC()
		from = &start
	}
	if endDate = strings.TrimSpace(endDate); endDate != "" {
		day, err := time.ParseInLocation(dayLayout, endDate, s.settings.Location)
		if err != nil {
			return nil, nil, store.Invalid("end_date must use YYYY-MM-DD")
		}
		end := day.AddDate(0, 0, 1).UTC()
		to = &end
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, errRangeOrder
	}
	return from, to, nil
}

func clampLimit(limit int, fallback int, maxLimit int) int {
	if limit < 1 {
		return fallback
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
