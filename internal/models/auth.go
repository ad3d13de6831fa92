package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system. Identity is
// issued by the external auth module; this service trusts the token and does
// not manage users.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleWorker     UserRole = "WORKER"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	DeviceID string   `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}
