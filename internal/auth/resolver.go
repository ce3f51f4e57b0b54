package auth

import (
	"fmt"
	"strings"

	"github.com/rongwang/marketplace-server/internal/models"
)

// Resolver failures. All of them wrap models.ErrUnauthenticated and the
// transport reports them identically.
var (
	ErrMissingCredential   = fmt.Errorf("%w: missing bearer credential", models.ErrUnauthenticated)
	ErrMalformedCredential = fmt.Errorf("%w: malformed authorization header", models.ErrUnauthenticated)
	ErrInvalidCredential   = fmt.Errorf("%w: invalid or expired token", models.ErrUnauthenticated)
)

const bearerPrefix = "Bearer "

// Resolver turns an Authorization header into a principal.
type Resolver struct {
	codec *TokenCodec
}

// NewResolver creates a resolver backed by codec.
func NewResolver(codec *TokenCodec) *Resolver {
	return &Resolver{codec: codec}
}

// Resolve validates header and returns the principal it carries.
func (r *Resolver) Resolve(header string) (models.Principal, error) {
	if header == "" {
		return models.Principal{}, ErrMissingCredential
	}

	if !strings.HasPrefix(header, bearerPrefix) {
		return models.Principal{}, ErrMalformedCredential
	}

	tokenString := strings.TrimPrefix(header, bearerPrefix)
	if tokenString == "" || strings.ContainsAny(tokenString, " \t") {
		return models.Principal{}, ErrMalformedCredential
	}

	claims, err := r.codec.Parse(tokenString)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	return claims.Principal(), nil
}
