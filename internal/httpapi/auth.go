package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/service"
)

const tokenIssuer = "billmngapp"

var errInvalidToken = errors.New("invalid or expired token")

// AuthManager issues and verifies the HS256 session tokens handed out at
// login.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role   string `json:"role"`
	ShopID string `json:"shop_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (a *AuthManager) Issue(user domain.User) (domain.LoginResponse, error) {
	issuedAt := a.now().UTC()
	expiresAt := issuedAt.Add(a.tokenTTL)
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:   user.Role,
		ShopID: user.ShopID,
		Email:  user.Email,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        user,
	}, nil
}

// ParseToken returns the principal a token was issued for. Role and shop are
// only hints; requests re-read the user before acting.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: sub, Role: claims.Role, ShopID: claims.ShopID, Email: claims.Email}, nil
}

// requireAuth verifies the bearer token and loads the current state of its
// user into the request context.
func (a *API) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(c, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		claimed, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			a.writeError(c, http.StatusUnauthorized, err)
			return
		}
		actor, err := a.service.ResolveActor(c.Request.Context(), claimed.UserID)
		if err != nil {
			a.fail(c, err)
			return
		}

		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := service.ActorFromContext(c.Request.Context())
		if !ok || !slices.Contains(roles, actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden role"})
			return
		}
		c.Next()
	}
}

func (a *API) handleGoogleLogin(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c)) {
		a.writeError(c, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.GoogleLoginRequest
	if !a.bindJSON(c, &req) {
		return
	}
	identity, err := a.google.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		a.logger.Info("google sign-in rejected", zap.Error(err))
		a.fail(c, ErrInvalidGoogleToken)
		return
	}
	user, err := a.service.SignInOwner(c.Request.Context(), identity)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.respondWithSession(c, user)
}

func (a *API) handleEmployeeLogin(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c)) {
		a.writeError(c, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.EmployeeLoginRequest
	if !a.bindJSON(c, &req) {
		return
	}
	user, err := a.service.AuthenticateEmployee(c.Request.Context(), req.ShopCode, req.EmployeeID, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.respondWithSession(c, user)
}

func (a *API) respondWithSession(c *gin.Context, user domain.User) {
	resp, err := a.auth.Issue(user)
	if err != nil {
		a.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
