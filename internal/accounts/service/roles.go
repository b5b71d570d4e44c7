package service

import (
	"errors"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
)

var ErrForbidden = errors.New("forbidden")

// RoleGate authorizes users against a fixed allow-list of roles. It assumes
// the caller has already authenticated the user.
type RoleGate struct {
	allowed map[domain.Role]struct{}
}

// NewRoleGate builds a gate admitting exactly the given roles.
func NewRoleGate(roles ...domain.Role) *RoleGate {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return &RoleGate{allowed: allowed}
}

// Authorize returns ErrForbidden unless the user's role is on the list.
func (g *RoleGate) Authorize(u domain.User) error {
	if _, ok := g.allowed[u.Role]; !ok {
		return ErrForbidden
	}
	return nil
}
