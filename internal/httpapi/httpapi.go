package httpapi

import (
	"errors"
	"net/http"
	"net/netip"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/service"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigins []string
	Location       *time.Location
	Logger         *zap.Logger
}

type API struct {
	service      *service.Service
	auth         *AuthManager
	google       GoogleVerifier
	logger       *zap.Logger
	origins      []string
	location     *time.Location
	loginLimiter *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, google GoogleVerifier, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	configureBinding()

	return &API{
		service:      svc,
		auth:         auth,
		google:       google,
		logger:       opts.Logger,
		origins:      opts.AllowedOrigins,
		location:     opts.Location,
		loginLimiter: newAttemptLimiter(5, time.Minute),
	}
}

var bindingOnce sync.Once

// configureBinding makes gin reject unknown JSON fields and report
// validation failures with the json field name.
func configureBinding() {
	bindingOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(field reflect.StructField) string {
				name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
				if name == "" || name == "-" {
					return field.Name
				}
				return name
			})
		}
	})
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

// clientKey identifies the caller for rate limiting. Proxy headers are not
// trusted unless gin has been told about the proxy.
func clientKey(c *gin.Context) string {
	host := strings.TrimSpace(c.ClientIP())
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(a.corsMiddleware())
	r.Use(securityHeaders(), limitBody(), metricsMiddleware(), a.accessLog())

	r.GET("/healthz", a.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/auth/google", a.handleGoogleLogin)
	v1.POST("/auth/employee/login", a.handleEmployeeLogin)

	authed := v1.Group("", a.requireAuth())
	authed.GET("/me", a.handleGetMe)
	authed.PATCH("/me", a.handleUpdateMe)

	authed.POST("/shops", requireRole(domain.RoleOwner), a.handleRegisterShop)
	authed.GET("/shops/me", a.handleGetMyShop)
	authed.PATCH("/shops/me", requireRole(domain.RoleOwner), a.handleUpdateMyShop)

	owner := authed.Group("", requireRole(domain.RoleOwner))
	owner.GET("/employees", a.handleListEmployees)
	owner.POST("/employees", a.handleUpsertEmployee)
	owner.DELETE("/employees/:id", a.handleDeactivateEmployee)
	owner.POST("/employees/:id/salary/accrue", a.handleSalaryAccrual)
	owner.POST("/employees/:id/salary/pay", a.handleSalaryPayment)
	authed.GET("/employees/:id/salary/entries", a.handleSalaryEntries)

	authed.GET("/inventory", a.handleListInventory)
	authed.GET("/inventory/:id", a.handleGetInventory)
	owner.POST("/inventory", a.handleCreateInventory)
	owner.PATCH("/inventory/:id", a.handleUpdateInventory)
	owner.DELETE("/inventory/:id", a.handleDeleteInventory)

	authed.POST("/bills", a.handleCreateBill)
	authed.GET("/bills", a.handleListBills)
	authed.GET("/bills/:id", a.handleGetBill)

	authed.GET("/credits", a.handleListCredits)
	authed.GET("/credits/summary", a.handleCreditSummary)
	authed.GET("/credits/customer/:mobile", a.handleCreditsByCustomer)
	authed.POST("/credits/:id/pay", a.handlePayCredit)

	owner.GET("/analytics/sales-summary", a.handleSalesSummary)
	owner.GET("/analytics/revenue-breakdown", a.handleRevenueBreakdown)
	owner.GET("/analytics/top-items", a.handleTopItems)
	authed.GET("/analytics/salary-summary", a.handleSalarySummary)

	owner.GET("/exports/bills", a.handleExportBills)
	owner.GET("/exports/inventory", a.handleExportInventory)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func (a *API) corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if slices.Contains(a.origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = a.origins
	}
	corsConfig.AddAllowMethods("PATCH", "DELETE")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	return cors.New(corsConfig)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

func limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

func (a *API) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		a.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startedAt)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// bindJSON decodes the body into dest and answers 400 itself when that fails.
func (a *API) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		a.writeError(c, http.StatusBadRequest, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		field := fields[0]
		switch field.Tag() {
		case "required":
			return store.Invalid("%s is required", field.Field())
		case "gt":
			return store.Invalid("%s must be greater than %s", field.Field(), field.Param())
		case "min":
			return store.Invalid("%s must be at least %s characters", field.Field(), field.Param())
		case "oneof":
			return store.Invalid("%s must be one of: %s", field.Field(), field.Param())
		case "email":
			return store.Invalid("%s must be a valid email", field.Field())
		default:
			return store.Invalid("%s is invalid", field.Field())
		}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return store.Invalid("request body too large")
	}
	return store.Invalid("invalid request body: %s", err.Error())
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrLimitReached):
		return http.StatusConflict
	case errors.Is(err, store.ErrExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, ErrInvalidGoogleToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail answers with the status matching err.
func (a *API) fail(c *gin.Context, err error) {
	a.writeError(c, statusFor(err), err)
}

func (a *API) writeError(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("request failed",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
