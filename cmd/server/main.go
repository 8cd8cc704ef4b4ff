package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/cache"
	"github.com/vivekyadav247/billmngapp-backend/internal/config"
	"github.com/vivekyadav247/billmngapp-backend/internal/httpapi"
	"github.com/vivekyadav247/billmngapp-backend/internal/service"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/store/memory"
	"github.com/vivekyadav247/billmngapp-backend/internal/store/mongodb"
	pgstore "github.com/vivekyadav247/billmngapp-backend/internal/store/postgres"
	"github.com/vivekyadav247/billmngapp-backend/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal("invalid security configuration", zap.Error(err))
	}
	location, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid APP_TIMEZONE", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("repository unavailable; refusing to start with in-memory fallback",
			zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}

	summaries := cache.SummaryCache(cache.NoopSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			summaries = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		log.Info("cache: noop")
	}

	svc := service.New(repo, summaries, logger.Named(log, "service"), service.Settings{
		Location:    location,
		PhoneRegion: cfg.PhoneRegion,
		SummaryTTL:  cfg.SummaryCacheTTL,
	})
	auth := httpapi.NewAuthManager(cfg.JWTSecret, cfg.TokenTTL)
	google := httpapi.NewGoogleVerifier(cfg.GoogleAudiences)

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.New(svc, auth, google, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Location:       location,
		Logger:         logger.Named(log, "http"),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("billing backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

// openRepository connects the configured store. A configured database that
// cannot be reached is an error, never a silent switch to memory.
func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Repository, []func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("repository: postgres")
		return pg, []func() error{pg.Close}, nil

	case config.DriverMongo:
		mg, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		if err := mg.EnsureIndexes(ctx); err != nil {
			_ = mg.Close(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		log.Info("repository: mongo", zap.String("database", cfg.MongoDB))
		closeMongo := func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mg.Close(closeCtx)
		}
		return mg, []func() error{closeMongo}, nil

	case config.DriverMemory:
		log.Warn("repository: in-memory demo data, nothing is persisted")
		return memory.NewSeeded(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set and at least 32 characters")
	}
	if len(cfg.GoogleAudiences) == 0 {
		return fmt.Errorf("GOOGLE_CLIENT_ID or GOOGLE_ALLOWED_CLIENT_IDS must be set")
	}
	return nil
}
