package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       int64
	Email        string
	Capabilities []Capability
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID       int64        `json:"user_id"`
	Email        string       `json:"email,omitempty"`
	Capabilities []Capability `json:"caps,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the authenticated subject described by the claims.
func (c *AccessTokenClaims) Principal() Subject {
	if c == nil {
		return Subject{}
	}
	return Subject{UserID: c.UserID, Email: c.Email, Capabilities: c.Capabilities}
}
