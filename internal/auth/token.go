// Package auth issues and verifies bearer tokens and decides whether a
// principal may perform an action.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rongwang/marketplace-server/internal/models"
)

// AccessTokenType tags the tokens issued by TokenCodec so they cannot be
// confused with any other token kind signed by the same secret.
const AccessTokenType = "access"

// ErrInvalidToken is returned by Parse for any token that must not be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the claim set carried by an access token
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64        `json:"uid"`
	Level     models.Level `json:"lvl"`
	TokenType string       `json:"token_type"`
}

// Principal returns the principal described by the claims.
func (c *Claims) Principal() models.Principal {
	return models.Principal{AccountID: c.AccountID, Level: c.Level}
}

// TokenCodec signs and verifies access tokens with an HMAC secret.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec. ttl is a deployment policy and must be set
// explicitly by the caller.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the codec that reads the time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL returns the validity period of issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the given account and level. The returned expiry is
// the one carried in the token, truncated to whole seconds.
func (c *TokenCodec) Issue(accountID int64, level models.Level) (string, time.Time, error) {
	if !level.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: unknown level %d", level)
	}

	now := c.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		AccountID: accountID,
		Level:     level,
		TokenType: AccessTokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Parse verifies the signature, expiry and type tag of tokenString and
// returns its claims. A token is expired from the instant of its exp claim.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != AccessTokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.TokenType)
	}

	if !claims.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown level %d", ErrInvalidToken, claims.Level)
	}

	if claims.Subject != strconv.FormatInt(claims.AccountID, 10) {
		return nil, fmt.Errorf("%w: subject does not match account", ErrInvalidToken)
	}

	return claims, nil
}
