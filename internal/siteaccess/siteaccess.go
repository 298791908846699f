// Package siteaccess enforces the multi-site authorization envelope
// described in spec.md §4.F: a caller may only act on a site it has been
// explicitly assigned to (or any site, if its global role is admin).
//
// This plays the role the teacher's pkg/tenant middleware plays for
// schema-per-tenant isolation, but the data model here is single-schema
// with a site_id column rather than one Postgres schema per tenant, so
// there is no search_path to switch — only an authorization check and a
// resolved site identifier to store in the request context.
package siteaccess

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/auth"
	"github.com/parklane/parkcore/internal/httpserver"
)

// Resolver extracts the requested site ID from an inbound request, e.g. from
// a path parameter or query string.
type Resolver interface {
	Resolve(r *http.Request) (uuid.UUID, error)
}

// PathParamResolver resolves the site ID from a chi URL parameter, typically
// "siteId".
type PathParamResolver struct {
	Param string
}

func (p PathParamResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	param := p.Param
	if param == "" {
		param = "siteId"
	}
	raw := chi.URLParam(r, param)
	return uuid.Parse(raw)
}

type ctxKey string

const siteKey ctxKey = "siteaccess_site_id"

// NewContext stores the resolved, authorized site ID in ctx.
func NewContext(ctx context.Context, siteID uuid.UUID) context.Context {
	return context.WithValue(ctx, siteKey, siteID)
}

// FromContext returns the site ID resolved by Middleware, if any.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(siteKey).(uuid.UUID)
	return v, ok
}

// Middleware resolves the target site for the request via resolver and
// rejects the request with 403 unless the authenticated identity is a
// global admin or has an explicit assignment to that site. On success the
// resolved site ID is stored in the request context for handlers to read
// via FromContext.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.FromContext(r.Context())
			if identity == nil {
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			siteID, err := resolver.Resolve(r)
			if err != nil {
				var apiErr *apierr.Error
				if errors.As(err, &apiErr) {
					apierr.Respond(w, httpserver.Respond, nil, apiErr)
					return
				}
				httpserver.RespondError(w, http.StatusBadRequest, "invalid_site", "could not resolve site identifier")
				return
			}

			if identity.Role != auth.RoleAdmin && !identity.HasSite(siteID) {
				httpserver.RespondError(w, http.StatusForbidden, "forbidden", "not assigned to this site")
				return
			}

			ctx := NewContext(r.Context(), siteID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSiteRole returns middleware that additionally requires the caller's
// per-site role (for the site resolved by an earlier Middleware call) to meet
// minRole, unless the caller is a global admin. Per spec.md §4.F, site
// configuration mutations require site-admin or supervisor; booking and
// machine operations accept any assigned role.
func RequireSiteRole(minRole string) func(http.Handler) http.Handler {
	level := siteRoleLevel[minRole]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.FromContext(r.Context())
			siteID, ok := FromContext(r.Context())
			if identity == nil || !ok {
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			if identity.Role == auth.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			role, assigned := identity.SiteRoleFor(siteID)
			if !assigned || siteRoleLevel[role] < level {
				httpserver.RespondError(w, http.StatusForbidden, "forbidden", "insufficient site role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var siteRoleLevel = map[string]int{
	auth.SiteRoleOperator:   10,
	auth.SiteRoleSupervisor: 20,
	auth.SiteRoleAdmin:      30,
}
