package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
)

// Access tokens are HS256 only; parsing rejects every other alg.
var signingMethod = jwt.SigningMethodHS256

var (
	ErrNoSecret  = errors.New("jwt secret is required")
	ErrNoIssuer  = errors.New("jwt issuer is required")
	ErrTTL       = errors.New("jwt expiration minutes must be positive")
	ErrNoSubject = errors.New("token subject is required")
)

func ttl(cfg config.JWTConfig) time.Duration {
	return time.Duration(cfg.ExpirationMinutes) * time.Minute
}

func checkSigning(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return ErrNoSecret
	case cfg.Issuer == "":
		return ErrNoIssuer
	case cfg.ExpirationMinutes <= 0:
		return ErrTTL
	}
	return nil
}

// MintAccessToken signs a token for payload that expires cfg.ExpirationMinutes
// after now. The email is lower-cased and a jti is generated when absent.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkSigning(cfg); err != nil {
		return "", err
	}
	if payload.UserID <= 0 {
		return "", ErrNoSubject
	}
	for _, c := range payload.Capabilities {
		if !c.IsValid() {
			return "", fmt.Errorf("unknown capability %q", c)
		}
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID:       payload.UserID,
		Email:        strings.ToLower(strings.TrimSpace(payload.Email)),
		Capabilities: payload.Capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(payload.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl(cfg))),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. jwt's sentinel
// errors (jwt.ErrTokenExpired and friends) stay reachable through errors.Is.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	claims := new(AccessTokenClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, ErrNoSubject
	}
	return claims, nil
}
