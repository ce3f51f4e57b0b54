package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/marketplace-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	codec := NewTokenCodec(testSecret, time.Hour).WithClock(fixedClock(now))
	resolver := NewResolver(codec)

	valid, _, err := codec.Issue(3, models.LevelAdministrator)
	require.NoError(t, err)

	principal, err := resolver.Resolve("Bearer " + valid)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{AccountID: 3, Level: models.LevelAdministrator}, principal)
	assert.True(t, principal.IsAdministrator())

	expired, _, err := codec.WithClock(fixedClock(now.Add(-2*time.Hour))).Issue(3, models.LevelAdministrator)
	require.NoError(t, err)

	forged, _, err := NewTokenCodec("wrong-secret", time.Hour).WithClock(fixedClock(now)).Issue(3, models.LevelAdministrator)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
		cause  error
	}{
		{name: "missing", header: "", want: ErrMissingCredential},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", want: ErrMalformedCredential},
		{name: "lowercase scheme", header: "bearer " + valid, want: ErrMalformedCredential},
		{name: "empty token", header: "Bearer ", want: ErrMalformedCredential},
		{name: "extra field", header: "Bearer " + valid + " extra", want: ErrMalformedCredential},
		{name: "expired", header: "Bearer " + expired, want: ErrInvalidCredential, cause: jwt.ErrTokenExpired},
		{name: "bad signature", header: "Bearer " + forged, want: ErrInvalidCredential, cause: jwt.ErrTokenSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := resolver.Resolve(tt.header)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrUnauthenticated)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
			assert.Equal(t, models.Principal{}, principal)
		})
	}
}

func TestResolverErrorsAreDistinct(t *testing.T) {
	errs := []error{ErrMissingCredential, ErrMalformedCredential, ErrInvalidCredential}

	for i, a := range errs {
		for j, b := range errs {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
