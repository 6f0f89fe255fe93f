package auth

import (
	"slices"
	"time"
)

// Method indicates how authentication was performed.
type Method string

const (
	MethodNone   Method = "none"
	MethodJWT    Method = "jwt"
	MethodAPIKey Method = "api_key"
)

// Roles understood by the admin surface.
const (
	// RoleOperator may reset healing state.
	RoleOperator = "operator"
	// RoleViewer may read stats and history.
	RoleViewer = "viewer"
)

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the unique identifier (e.g., user ID, email).
	Principal string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Method indicates how authentication was performed.
	Method Method

	// Claims contains the raw claims from the token or key metadata.
	Claims map[string]any

	// ExpiresAt is when this identity expires. Zero means never.
	ExpiresAt time.Time

	// IssuedAt is when this identity was created.
	IssuedAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// ExpiredAt reports whether the identity has expired at now.
func (id *Identity) ExpiredAt(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}
