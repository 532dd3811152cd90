package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

var (
	// ErrTokenExpired indicates the token signature is valid but past expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates the token is malformed or its signature failed.
	ErrTokenInvalid = errors.New("token invalid")
)

// SessionClaims embeds the identity and session reference inside the bearer
// token.
type SessionClaims struct {
	UserID    string          `json:"uid"`
	Role      domain.UserRole `json:"role"`
	SessionID string          `json:"sid"`
	jwt.RegisteredClaims
}

// TokenSigner mints and parses HS256 session tokens.
type TokenSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenSigner constructs a TokenSigner. The secret is required.
func NewTokenSigner(secret, issuer string) (*TokenSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &TokenSigner{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the clock used for expiry validation during parsing.
func (s *TokenSigner) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Sign mints a token for the user bound to the supplied session with the
// given TTL.
func (s *TokenSigner) Sign(user domain.User, sessionID string, ttl time.Duration, now time.Time) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}

	now = now.UTC()
	claims := SessionClaims{
		UserID:    user.ID,
		Role:      user.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse validates signature and expiry and returns the embedded claims.
// Expired tokens return ErrTokenExpired; anything else invalid returns
// ErrTokenInvalid.
func (s *TokenSigner) Parse(token string) (*SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
