package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
)

var ErrInvalidGoogleToken = errors.New("invalid google id token")

// GoogleVerifier checks an owner's Google id token.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (domain.GoogleIdentity, error)
}

type validateFunc func(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)

type idTokenVerifier struct {
	audiences []string
	validate  validateFunc
}

// NewGoogleVerifier accepts tokens minted for any of the given client ids.
func NewGoogleVerifier(audiences []string) GoogleVerifier {
	return &idTokenVerifier{audiences: audiences, validate: idtoken.Validate}
}

func (v *idTokenVerifier) Verify(ctx context.Context, idToken string) (domain.GoogleIdentity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" || len(v.audiences) == 0 {
		return domain.GoogleIdentity{}, ErrInvalidGoogleToken
	}

	var lastErr error
	for _, audience := range v.audiences {
		payload, err := v.validate(ctx, idToken, audience)
		if err != nil {
			lastErr = err
			continue
		}
		return identityFrom(payload)
	}
	return domain.GoogleIdentity{}, fmt.Errorf("%w: %v", ErrInvalidGoogleToken, lastErr)
}

func identityFrom(payload *idtoken.Payload) (domain.GoogleIdentity, error) {
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	if !emailVerified(payload.Claims["email_verified"]) {
		return domain.GoogleIdentity{}, fmt.Errorf("%w: email is not verified", ErrInvalidGoogleToken)
	}
	if strings.TrimSpace(email) == "" || payload.Subject == "" {
		return domain.GoogleIdentity{}, fmt.Errorf("%w: token has no email", ErrInvalidGoogleToken)
	}
	return domain.GoogleIdentity{Subject: payload.Subject, Email: email, Name: name}, nil
}

// emailVerified accepts both the boolean and the string form Google uses.
func emailVerified(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
