package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/you/eventhub/domain"
)

// jwtClaims is the wire form of domain.TokenClaims.
type jwtClaims struct {
	AccountID       uint   `json:"id"`
	Role            string `json:"role"`
	Type            string `json:"type"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	ShortCode       string `json:"shortCode,omitempty"`
	GoogleID        string `json:"googleId,omitempty"`
	DisplayName     string `json:"name,omitempty"`
	ExistingUserID  uint   `json:"existingUserId,omitempty"`
	ExistingStaffID uint   `json:"existingStaffId,omitempty"`
	ExistingAdminID uint   `json:"existingAdminId,omitempty"`
	jwt.RegisteredClaims
}

// JWTServiceImpl implements domain.TokenService
type JWTServiceImpl struct {
	secretKey []byte
	issuer    string
	tempTTL   time.Duration
	fullTTL   time.Duration
	now       func() time.Time
}

// JWTOption customizes a JWTServiceImpl
type JWTOption func(*JWTServiceImpl)

// WithClock overrides the time source
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWTServiceImpl) { j.now = now }
}

// NewJWTService creates a new JWT service. A missing secret is a startup
// error, never a per-request one.
func NewJWTService(secretKey, issuer string, tempTTL, fullTTL time.Duration, opts ...JWTOption) (*JWTServiceImpl, error) {
	if secretKey == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	j := &JWTServiceImpl{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		tempTTL:   tempTTL,
		fullTTL:   fullTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// generateJTI creates a unique JWT ID
func (j *JWTServiceImpl) generateJTI() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Sign implements domain.TokenService
func (j *JWTServiceImpl) Sign(claims *domain.TokenClaims, ttl time.Duration) (string, time.Time, error) {
	if claims.Type != domain.TokenTemp && claims.Type != domain.TokenFull {
		return "", time.Time{}, domain.ErrTokenWrongType
	}
	if _, err := domain.ParseRole(string(claims.Role)); err != nil {
		return "", time.Time{}, err
	}

	now := j.now()
	expiresAt := now.Add(ttl)
	wire := jwtClaims{
		AccountID:       claims.AccountID,
		Role:            string(claims.Role),
		Type:            string(claims.Type),
		Email:           claims.Email,
		Phone:           claims.Phone,
		ShortCode:       claims.ShortCode,
		GoogleID:        claims.GoogleID,
		DisplayName:     claims.DisplayName,
		ExistingUserID:  claims.ExistingUserID,
		ExistingStaffID: claims.ExistingStaffID,
		ExistingAdminID: claims.ExistingAdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        j.generateJTI(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, wire.ExpiresAt.Time, nil
}

// SignTempToken implements domain.TokenService
func (j *JWTServiceImpl) SignTempToken(claims *domain.TokenClaims) (string, time.Time, error) {
	c := *claims
	c.Type = domain.TokenTemp
	return j.Sign(&c, j.tempTTL)
}

// SignFullToken implements domain.TokenService
func (j *JWTServiceImpl) SignFullToken(claims *domain.TokenClaims) (string, time.Time, error) {
	c := *claims
	c.Type = domain.TokenFull
	c.ExistingUserID, c.ExistingStaffID, c.ExistingAdminID = 0, 0, 0
	return j.Sign(&c, j.fullTTL)
}

// Verify implements domain.TokenService. Expiry is reported as
// domain.ErrTokenExpired; every other failure is domain.ErrTokenInvalid.
func (j *JWTServiceImpl) Verify(tokenString string) (*domain.TokenClaims, error) {
	var wire jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &wire, j.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	return toDomain(&wire)
}

// VerifyTempToken implements domain.TokenService
func (j *JWTServiceImpl) VerifyTempToken(tokenString string) (*domain.TokenClaims, error) {
	return j.verifyType(tokenString, domain.TokenTemp)
}

// VerifyFullToken implements domain.TokenService
func (j *JWTServiceImpl) VerifyFullToken(tokenString string) (*domain.TokenClaims, error) {
	return j.verifyType(tokenString, domain.TokenFull)
}

// DecodeExpired implements domain.TokenService. The signature, algorithm
// and issuer are still checked; only time-based claims are skipped.
func (j *JWTServiceImpl) DecodeExpired(tokenString string) (*domain.TokenClaims, error) {
	var wire jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &wire, j.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if wire.Issuer != j.issuer || wire.ExpiresAt == nil {
		return nil, domain.ErrTokenInvalid
	}
	return toDomain(&wire)
}

func (j *JWTServiceImpl) verifyType(tokenString string, want domain.TokenType) (*domain.TokenClaims, error) {
	claims, err := j.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, domain.ErrTokenWrongType
	}
	return claims, nil
}

func (j *JWTServiceImpl) keyFunc(*jwt.Token) (interface{}, error) {
	return j.secretKey, nil
}

// toDomain normalizes the role and type at the boundary; anything
// unrecognized makes the whole token invalid.
func toDomain(wire *jwtClaims) (*domain.TokenClaims, error) {
	role, err := domain.ParseRole(wire.Role)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	tokenType := domain.TokenType(wire.Type)
	if tokenType != domain.TokenTemp && tokenType != domain.TokenFull {
		return nil, domain.ErrTokenInvalid
	}

	claims := &domain.TokenClaims{
		AccountID:       wire.AccountID,
		Role:            role,
		Type:            tokenType,
		Email:           wire.Email,
		Phone:           wire.Phone,
		ShortCode:       wire.ShortCode,
		GoogleID:        wire.GoogleID,
		DisplayName:     wire.DisplayName,
		ExistingUserID:  wire.ExistingUserID,
		ExistingStaffID: wire.ExistingStaffID,
		ExistingAdminID: wire.ExistingAdminID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}

var _ domain.TokenService = (*JWTServiceImpl)(nil)
