package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"

	"github.com/you/eventhub/domain"
)

// ValidateFunc checks a Google ID token against an audience.
type ValidateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier implements domain.IdentityProvider for Google Sign-In ID tokens
type GoogleVerifier struct {
	clientID string
	validate ValidateFunc
	log      zerolog.Logger
}

// NewGoogleVerifier creates a verifier bound to one OAuth client id
func NewGoogleVerifier(clientID string, log zerolog.Logger) *GoogleVerifier {
	return NewGoogleVerifierWithValidator(clientID, idtoken.Validate, log)
}

// NewGoogleVerifierWithValidator swaps the token validator, for tests
func NewGoogleVerifierWithValidator(clientID string, validate ValidateFunc, log zerolog.Logger) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: clientID,
		validate: validate,
		log:      log.With().Str("component", "google_identity").Logger(),
	}
}

// Verify implements domain.IdentityProvider. Only tokens whose email Google
// itself has verified are accepted.
func (g *GoogleVerifier) Verify(ctx context.Context, credential string) (*domain.ExternalIdentity, error) {
	if g.clientID == "" {
		return nil, fmt.Errorf("%w: google client id is not configured", domain.ErrUpstream)
	}
	if strings.TrimSpace(credential) == "" {
		return nil, domain.NewFieldError("idToken", "is required")
	}

	payload, err := g.validate(ctx, credential, g.clientID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		g.log.Info().Err(err).Msg("google id token rejected")
		return nil, domain.ErrIdentityUnverified
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	name, _ := payload.Claims["name"].(string)
	if payload.Subject == "" || email == "" || !verified {
		return nil, domain.ErrIdentityUnverified
	}

	return &domain.ExternalIdentity{
		Email:       strings.ToLower(email),
		ExternalID:  payload.Subject,
		DisplayName: name,
	}, nil
}

var _ domain.IdentityProvider = (*GoogleVerifier)(nil)
