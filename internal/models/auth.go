package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the identity supplied by the external auth context.
// ClassID is set for students (their class assignment) and optional otherwise.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name,omitempty"`
	ClassID  string   `json:"class_id,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims belong to an administrator.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
