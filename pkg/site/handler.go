package site

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/audit"
	"github.com/parklane/parkcore/internal/auth"
	"github.com/parklane/parkcore/internal/httpserver"
	"github.com/parklane/parkcore/internal/siteaccess"
)

// Handler provides HTTP handlers for the sites API.
type Handler struct {
	logger  *slog.Logger
	audit   *audit.Writer
	service *Service
}

// NewHandler creates a site Handler backed by the given global pool and cache.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool, rdb *redis.Client) *Handler {
	return &Handler{
		logger:  logger,
		audit:   auditWriter,
		service: NewService(pool, rdb, logger),
	}
}

// Routes returns a chi.Router with all site routes mounted. Per spec.md
// §4.F, site creation and deletion require admin; updates and assignment
// require supervisor or above; reads are open to any authenticated role.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireMinRole(auth.RoleAdmin)).Post("/", h.handleCreate)
	r.Get("/", h.handleList)

	r.Route("/{siteID}", func(sr chi.Router) {
		sr.Use(siteaccess.Middleware(siteaccess.PathParamResolver{Param: "siteID"}))
		sr.Get("/", h.handleGet)
		sr.Get("/statistics", h.handleStatistics)
		sr.With(auth.RequireMinRole(auth.RoleSupervisor)).Put("/", h.handleUpdate)
		sr.With(auth.RequireMinRole(auth.RoleSupervisor)).Post("/deactivate", h.handleDeactivate)
		sr.With(auth.RequireMinRole(auth.RoleAdmin)).Delete("/", h.handleDelete)
		sr.With(auth.RequireMinRole(auth.RoleSupervisor)).Post("/users", h.handleAssignUser)
	})

	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	site, err := h.service.Create(r.Context(), req.toServiceRequest(), id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"siteCode": site.SiteCode, "name": site.Name})
		h.audit.LogFromRequest(r, "create", "site", site.ID, detail)
	}

	httpserver.Respond(w, http.StatusCreated, site)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	siteID, _ := siteaccess.FromContext(r.Context())
	site, err := h.service.Get(r.Context(), siteID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, site)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r, httpserver.DefaultPageSize)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	status := r.URL.Query().Get("status")

	items, total, err := h.service.List(r.Context(), status, params.Limit, params.Offset)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(items, params, total))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	siteID, _ := siteaccess.FromContext(r.Context())
	var req updateRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	site, err := h.service.Update(r.Context(), siteID, req.toServiceRequest(), id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "update", "site", siteID, nil)
	}

	httpserver.Respond(w, http.StatusOK, site)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	siteID, _ := siteaccess.FromContext(r.Context())
	id := auth.FromContext(r.Context())

	site, err := h.service.Deactivate(r.Context(), siteID, id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "deactivate", "site", siteID, nil)
	}

	httpserver.Respond(w, http.StatusOK, site)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	siteID, _ := siteaccess.FromContext(r.Context())
	force := r.URL.Query().Get("force") == "true"

	var recordedDetail json.RawMessage
	err := h.service.DeletePermanently(r.Context(), siteID, force, func(detail json.RawMessage) {
		recordedDetail = detail
	})
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "delete", "site", siteID, recordedDetail)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleAssignUser(w http.ResponseWriter, r *http.Request) {
	siteID, _ := siteaccess.FromContext(r.Context())
	var req assignUserRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user ID")
		return
	}

	assignment, err := h.service.AssignUser(r.Context(), siteID, userID, req.SiteRole, req.Permissions)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "assign_user", "site", siteID, nil)
	}

	httpserver.Respond(w, http.StatusOK, assignment)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	siteID, _ := siteaccess.FromContext(r.Context())
	stats, err := h.service.Statistics(r.Context(), siteID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}
