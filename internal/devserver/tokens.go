package devserver

import (
	"errors"
	"sync"
	"time"

	"tenant-portal/internal/session/domain/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
	ErrTokenRevoked = errors.New("token was revoked")
)

// Claims are the claims the backend puts into its tokens
type Claims struct {
	UserID    int64  `json:"id"`
	Role      string `json:"role"`
	CompanyID int64  `json:"companyID,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 tokens. Revoked token ids are kept
// until the server stops.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]struct{}
}

// NewTokenIssuer creates an issuer
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret key cannot be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]struct{}),
	}, nil
}

// Issue signs a token for user
func (t *TokenIssuer) Issue(user model.User) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:    user.ID,
		Role:      user.Role,
		CompanyID: user.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses and verifies token
func (t *TokenIssuer) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	t.mu.RLock()
	_, revoked := t.revoked[claims.ID]
	t.mu.RUnlock()
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates token for every later Validate. Realtime connections
// opened with it stay up.
func (t *TokenIssuer) Revoke(token string) error {
	claims, err := t.Validate(token)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return ErrTokenInvalid
	}
	t.mu.Lock()
	t.revoked[claims.ID] = struct{}{}
	t.mu.Unlock()
	return nil
}
