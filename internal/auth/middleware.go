package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Middleware authenticates the caller via a Bearer access token minted by the
// (external) identity provider and stores the resulting Identity in the
// request context. Requests without a valid token are rejected with 401.
func Middleware(sessionMgr *SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			raw := strings.TrimSpace(authHeader[len("Bearer "):])

			claims, err := sessionMgr.ValidateAccessToken(raw)
			if err != nil {
				logger.Warn("access token validation failed", "error", err)
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "malformed subject claim")
				return
			}

			identity := &Identity{
				UserID:     userID,
				OperatorID: claims.OperatorID,
				Role:       claims.Role,
			}
			if claims.PrimarySite != "" {
				if siteID, err := uuid.Parse(claims.PrimarySite); err == nil {
					identity.PrimarySite = &siteID
				}
			}
			for _, s := range claims.Sites {
				if siteID, err := uuid.Parse(s); err == nil {
					identity.AssignedSites = append(identity.AssignedSites, SiteAssignment{SiteID: siteID})
				}
			}

			logger.Debug("authenticated", "user_id", identity.UserID, "role", identity.Role)

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
