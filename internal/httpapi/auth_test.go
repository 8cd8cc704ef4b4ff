package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
)

func TestAuthManagerRoundTrip(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)

	resp, err := auth.Issue(domain.User{ID: "u-1", Role: domain.RoleOwner, ShopID: "shop-1", Email: "a@b.test"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.UserID != "u-1" || actor.Role != domain.RoleOwner || actor.ShopID != "shop-1" || actor.Email != "a@b.test" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expires_at is not RFC3339: %q", resp.ExpiresAt)
	}
}

func TestAuthManagerRejectsExpiredToken(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)
	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }

	resp, err := auth.Issue(domain.User{ID: "u-1", Role: domain.RoleEmployee})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	auth.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestAuthManagerRejectsForeignTokens(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour)
	other := NewAuthManager("another-secret-of-sufficient-length!!", time.Hour)

	resp, err := other.Issue(domain.User{ID: "u-1", Role: domain.RoleOwner})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u-1", Issuer: tokenIssuer},
		Role:             domain.RoleOwner,
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}

	wrongIssuer := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err = wrongIssuer.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil {
		t.Fatalf("expected token from another issuer to be rejected")
	}
}

func stubValidate(accepted string, claims map[string]interface{}) validateFunc {
	return func(_ context.Context, _ string, audience string) (*idtoken.Payload, error) {
		if audience != accepted {
			return nil, errors.New("audience mismatch")
		}
		return &idtoken.Payload{Audience: audience, Subject: "google-sub", Claims: claims}, nil
	}
}

func TestGoogleVerifierTriesEveryAudience(t *testing.T) {
	verifier := &idTokenVerifier{
		audiences: []string{"web-client", "android-client"},
		validate: stubValidate("android-client", map[string]interface{}{
			"email":          "owner@example.com",
			"email_verified": true,
			"name":           "Owner",
		}),
	}

	identity, err := verifier.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Subject != "google-sub" || identity.Email != "owner@example.com" || identity.Name != "Owner" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestGoogleVerifierRejections(t *testing.T) {
	cases := []struct {
		name      string
		audiences []string
		claims    map[string]interface{}
		token     string
	}{
		{name: "no audience configured", claims: map[string]interface{}{"email": "a@b.test", "email_verified": true}, token: "token"},
		{name: "empty token", audiences: []string{"web-client"}, claims: map[string]interface{}{"email": "a@b.test", "email_verified": true}},
		{name: "unverified email", audiences: []string{"web-client"}, claims: map[string]interface{}{"email": "a@b.test", "email_verified": "false"}, token: "token"},
		{name: "missing email", audiences: []string{"web-client"}, claims: map[string]interface{}{"email_verified": true}, token: "token"},
		{name: "unknown audience", audiences: []string{"other-client"}, claims: map[string]interface{}{"email": "a@b.test", "email_verified": true}, token: "token"},
	}
	for _, tc := range cases {
		verifier := &idTokenVerifier{audiences: tc.audiences, validate: stubValidate("web-client", tc.claims)}
		_, err := verifier.Verify(context.Background(), tc.token)
		if !errors.Is(err, ErrInvalidGoogleToken) {
			t.Fatalf("%s: expected ErrInvalidGoogleToken, got %v", tc.name, err)
		}
	}
}

func TestRequireAuthRejectsBadHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	ghost, err := env.auth.Issue(domain.User{ID: "user-that-does-not-exist", Role: domain.RoleOwner})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt", "Bearer " + ghost.AccessToken} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}
