package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/phone"
)

// match ranks, best first; ties go to the lowest id
const (
	rankRawPhone = iota
	rankCanonicalPhone
	rankPhoneVariant
	rankEmail
	rankShortCode
	rankNone
)

// IdentityResolverImpl implements domain.IdentityResolver
type IdentityResolverImpl struct {
	accounts   domain.AccountRepository
	normalizer *phone.Normalizer
	log        zerolog.Logger
}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver(accounts domain.AccountRepository, normalizer *phone.Normalizer, log zerolog.Logger) domain.IdentityResolver {
	return &IdentityResolverImpl{
		accounts:   accounts,
		normalizer: normalizer,
		log:        log.With().Str("component", "identity_resolver").Logger(),
	}
}

// FindAccountForLogin implements domain.IdentityResolver. The identifier is
// matched as email, short code and, when it is phone-shaped, against every
// stored phone variant in one OR query. Among several matches the closest
// phone form wins, then email, then short code, then the oldest account.
func (r *IdentityResolverImpl) FindAccountForLogin(ctx context.Context, identifier string, role domain.Role) (*domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.NewFieldError("identifier", "is required")
	}

	lookup := domain.AccountLookup{}
	var canonical string
	if phone.LooksLikePhone(identifier) {
		lookup.Phones = r.normalizer.Variants(identifier)
		canonical = r.normalizer.Normalize(identifier)
	}
	if strings.Contains(identifier, "@") {
		lookup.Email = identifier
	} else {
		lookup.ShortCode = identifier
	}

	candidates, err := r.accounts.FindByAny(ctx, role, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	var best *domain.Account
	bestRank := rankNone
	for _, c := range candidates {
		rank := matchRank(c, identifier, canonical, lookup.Phones)
		if rank < bestRank || (rank == bestRank && best != nil && c.ID < best.ID) {
			best, bestRank = c, rank
		}
	}
	if best == nil {
		return nil, domain.ErrAccountNotFound
	}
	if len(candidates) > 1 {
		r.log.Warn().
			Int("matches", len(candidates)).
			Uint("chosen_id", best.ID).
			Str("role", string(role)).
			Msg("ambiguous login identifier")
	}
	return best, nil
}

// FindAccountForGoogle implements domain.IdentityResolver. Phone variants
// are never consulted here.
func (r *IdentityResolverImpl) FindAccountForGoogle(ctx context.Context, identity *domain.ExternalIdentity, role domain.Role) (*domain.Account, error) {
	if identity == nil {
		return nil, domain.ErrIdentityUnverified
	}
	if identity.ExternalID != "" {
		account, err := r.accounts.FindByGoogleID(ctx, role, identity.ExternalID)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("failed to look up account by google id: %w", err)
		}
	}
	if identity.Email == "" {
		return nil, domain.ErrAccountNotFound
	}
	account, err := r.accounts.FindByEmail(ctx, role, identity.Email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up account by email: %w", err)
	}
	return account, nil
}

func matchRank(a *domain.Account, raw, canonical string, variants []string) int {
	if a.Phone != "" {
		switch {
		case a.Phone == raw:
			return rankRawPhone
		case canonical != "" && a.Phone == canonical:
			return rankCanonicalPhone
		}
		for _, v := range variants {
			if a.Phone == v {
				return rankPhoneVariant
			}
		}
	}
	if a.Email != "" && strings.EqualFold(a.Email, raw) {
		return rankEmail
	}
	if strings.EqualFold(a.ShortCode, raw) {
		return rankShortCode
	}
	return rankNone
}
