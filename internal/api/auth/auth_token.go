package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-docanalysis-auth/config"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

// TokenManager issues and validates signed, expiring access tokens.
// A token identifies a user session; it is never the user id itself.
type TokenManager struct {
	secretKey []byte
	issuer    string
	audience  string
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		ttl:       cfg.AccessTokenTTL,
		now:       time.Now,
	}
}

// Issue signs an access token for user.
func (m *TokenManager) Issue(user *types.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := types.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates tokenString and returns its claims.
// Failures wrap types.ErrUnauthenticated.
func (m *TokenManager) Parse(tokenString string) (*types.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token has expired", types.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", types.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: invalid token signature", types.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token: %v", types.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID <= 0 || claims.ID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", types.ErrUnauthenticated)
	}
	return claims, nil
}

// TokenDenylist remembers revoked token ids until the tokens would have expired anyway.
type TokenDenylist struct {
	cache *gocache.Cache
}

func NewTokenDenylist(cleanupInterval time.Duration) *TokenDenylist {
	return &TokenDenylist{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Revoke denies jti until expiresAt. Already expired tokens are ignored.
func (d *TokenDenylist) Revoke(jti string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	d.cache.Set(jti, struct{}{}, ttl)
}

func (d *TokenDenylist) IsRevoked(jti string) bool {
	_, found := d.cache.Get(jti)
	return found
}

// Len reports how many revocations are currently held.
func (d *TokenDenylist) Len() int {
	return d.cache.ItemCount()
}
