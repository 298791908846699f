// Package auth provides the identifier/credential primitives of component A
// (password hashing, session tokens) and the Identity type that every
// authorization decision in this service is made against. It deliberately
// stops at the primitives: minting a session for a freshly authenticated
// user (OIDC exchange, local username/password login, password reset) is
// treated as an external, opaque identity provider per the specification —
// this package only verifies tokens that provider already issued.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// Roles supported by the RBAC system, in descending privilege order.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleOperator   = "operator"
)

// ValidRoles lists all known global roles.
var ValidRoles = []string{RoleAdmin, RoleSupervisor, RoleOperator}

// SiteRole is a user's role within the scope of one assigned site. Site
// roles can exceed a user's global role for site-scoped operations (e.g. an
// operator made site-admin of their one site).
const (
	SiteRoleAdmin      = "site-admin"
	SiteRoleSupervisor = "supervisor"
	SiteRoleOperator   = "operator"
)

// SiteAssignment is one entry in a user's assignedSites list.
type SiteAssignment struct {
	SiteID      uuid.UUID
	SiteRole    string
	Permissions []string
}

// Identity represents the authenticated caller for the current request, as
// yielded by the (external) identity provider and carried in the session
// token this package verifies.
type Identity struct {
	UserID         uuid.UUID
	OperatorID     string
	Role           string
	AssignedSites  []SiteAssignment
	PrimarySite    *uuid.UUID
	Permissions    []string
}

// HasSite reports whether the identity is assigned to siteID, either as its
// primary site or via assignedSites.
func (id *Identity) HasSite(siteID uuid.UUID) bool {
	if id.PrimarySite != nil && *id.PrimarySite == siteID {
		return true
	}
	for _, a := range id.AssignedSites {
		if a.SiteID == siteID {
			return true
		}
	}
	return false
}

// SiteRoleFor returns the caller's site-level role for siteID and whether an
// assignment exists at all.
func (id *Identity) SiteRoleFor(siteID uuid.UUID) (string, bool) {
	for _, a := range id.AssignedSites {
		if a.SiteID == siteID {
			return a.SiteRole, true
		}
	}
	return "", false
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if no
// identity is set.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}

// IsValidRole reports whether role is a recognised global RBAC role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
