package jwt

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access-token claims for an authenticated caller.
// UserID and Role are what the call-record layer needs for its
// owner-or-admin access decisions; the auth middleware lifts them
// into the request principal.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}
