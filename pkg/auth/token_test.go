package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
)

func jwtConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "angkor", ExpirationMinutes: minutes}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := jwtConfig(30)
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID:       42,
		Email:        " Dara@Example.com ",
		Capabilities: []Capability{CapabilityOrdersPay, CapabilityProductsManage},
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "dara@example.com", claims.Email)
	assert.Equal(t, []Capability{CapabilityOrdersPay, CapabilityProductsManage}, claims.Capabilities)
	assert.Equal(t, "angkor", claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)

	assert.True(t, NewClaimsAuthorizer().HasCapability(claims.Principal(), CapabilityOrdersPay))
}

func TestMintAccessTokenKeepsExplicitJTI(t *testing.T) {
	cfg := jwtConfig(5)
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: 3, JTI: "session-3"})
	require.NoError(t, err)
	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "session-3", claims.ID)
}

func TestMintAccessTokenRejects(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
		wantErr error
	}{
		"no subject":     {jwtConfig(10), AccessTokenPayload{}, ErrNoSubject},
		"no secret":      {config.JWTConfig{Issuer: "angkor", ExpirationMinutes: 1}, AccessTokenPayload{UserID: 1}, ErrNoSecret},
		"no issuer":      {config.JWTConfig{Secret: "s", ExpirationMinutes: 1}, AccessTokenPayload{UserID: 1}, ErrNoIssuer},
		"zero ttl":       {config.JWTConfig{Secret: "s", Issuer: "angkor"}, AccessTokenPayload{UserID: 1}, ErrTTL},
		"bad capability": {jwtConfig(10), AccessTokenPayload{UserID: 1, Capabilities: []Capability{"orders.refund"}}, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := MintAccessToken(tc.cfg, now, tc.payload)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	cfg := jwtConfig(15)
	valid, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: 7})
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		_, err := ParseAccessToken(cfg, valid+"x")
		assert.Error(t, err)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		other := cfg
		other.Issuer = "someone-else"
		_, err := ParseAccessToken(other, valid)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: 7})
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, old)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := AccessTokenClaims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := AccessTokenClaims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, token)
		assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
	})

	t.Run("missing user id", func(t *testing.T) {
		claims := AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, token)
		assert.ErrorIs(t, err, ErrNoSubject)
	})
}
