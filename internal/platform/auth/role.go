package auth

import (
	"context"
	"fmt"
)

// Role is the closed set of user classifications. Every role-gated endpoint
// is guarded by RequireRole with one of these values.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleMR    Role = "MR"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMR
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q: must be %q or %q", s, RoleAdmin, RoleMR)
	}
	return r, nil
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
func (p Principal) IsMR() bool    { return p.Role == RoleMR }

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserIDFromContext returns the caller's user id, or 0 for anonymous requests.
func UserIDFromContext(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}
