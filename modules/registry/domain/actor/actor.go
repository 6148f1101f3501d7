package actor

import (
	"strings"

	"github.com/google/uuid"
)

// Well-known workflow roles. Definitions may declare others.
const (
	RoleInitiator = "initiator"
	RoleReviewer  = "reviewer"
	RoleAdmin     = "admin"
)

// Actor is the identity on whose behalf an operation runs. There is no
// implicit system actor: every call site passes one explicitly.
type Actor struct {
	ID    uuid.UUID
	Roles []string
}

func New(id uuid.UUID, roles ...string) Actor {
	return Actor{ID: id, Roles: normalizeRoles(roles)}
}

func (a Actor) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithRole returns a copy of a that also holds role.
func (a Actor) WithRole(role string) Actor {
	if a.HasRole(role) {
		return a
	}
	roles := make([]string, 0, len(a.Roles)+1)
	roles = append(roles, a.Roles...)
	roles = append(roles, role)
	return Actor{ID: a.ID, Roles: normalizeRoles(roles)}
}

func (a Actor) IsZero() bool { return a.ID == uuid.Nil }

func normalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
