package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Auth handles session token authentication
type Auth interface {
	Sign(accountID string) (string, error)
	Verify(tokenString string) (*Payload, error)
}

// Payload represents the session token payload
type Payload struct {
	AccountID string `json:"accountId"`
	jwt.RegisteredClaims
}
