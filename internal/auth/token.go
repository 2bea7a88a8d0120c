package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrUnauthorized is wrapped by every token failure so callers can treat
	// them uniformly.
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingToken     = fmt.Errorf("%w: missing token", ErrUnauthorized)
	ErrMalformed        = fmt.Errorf("%w: malformed token", ErrUnauthorized)
	ErrExpired          = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthorized)
)

// TokenService issues and verifies HS256 bearer tokens. Tokens are not
// persisted and cannot be revoked before they expire.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, ttl time.Duration, opts ...TokenOption) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns a signed token whose subject is userID.
func (s *TokenService) Issue(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded user id.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", s.classify(err, claims)
	}
	if claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}

// classify maps parser errors onto the token error kinds. Once the claims
// decode, expiry wins over any signature problem, including a signature
// segment that is not valid base64.
func (s *TokenService) classify(err error, claims *jwt.RegisteredClaims) error {
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		return ErrExpired
	}
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
