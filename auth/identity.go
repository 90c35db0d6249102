// Package auth carries the caller identity forwarded by the API gateway.
package auth

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

const (
	RoleAdmin             = "Admin"
	RoleOrganisationAdmin = "OrganisationAdmin"
	RoleUser              = "User"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Roles  []string
}

func (i Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(i.Roles, r) {
			return true
		}
	}
	return false
}

func (i Identity) IsAdmin() bool { return i.HasRole(RoleAdmin) }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
