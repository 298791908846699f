package customer

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/audit"
	"github.com/parklane/parkcore/internal/auth"
	"github.com/parklane/parkcore/internal/httpserver"
)

// Handler provides HTTP handlers for the customer and membership API.
type Handler struct {
	logger  *slog.Logger
	audit   *audit.Writer
	service *Service
}

// NewHandler creates a customer Handler backed by the given global pool.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool) *Handler {
	return &Handler{
		logger:  logger,
		audit:   auditWriter,
		service: NewService(pool, logger),
	}
}

// Routes returns a chi.Router with all customer routes mounted. Every route
// requires at least an operator role, per spec.md §6's access table.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireMinRole(auth.RoleOperator))

	r.Post("/", h.handleCreate)
	r.Get("/search", h.handleSearch)
	r.Post("/membership/validate", h.handleValidateMembership)

	r.Route("/{customerID}", func(cr chi.Router) {
		cr.Get("/", h.handleGet)
		cr.Delete("/", h.handleSoftDelete)
		cr.Post("/vehicles", h.handleAddVehicle)
		cr.Delete("/vehicles/{vehicleID}", h.handleRemoveVehicle)
		cr.Post("/membership", h.handleCreateMembership)
		cr.Delete("/membership", h.handleDeactivateMembership)
	})

	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	cust, err := h.service.Create(r.Context(), req.toServiceRequest(), id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"phone": cust.Phone})
		h.audit.LogFromRequest(r, "create", "customer", cust.ID, detail)
	}

	httpserver.Respond(w, http.StatusCreated, cust)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer ID")
		return
	}
	cust, err := h.service.Get(r.Context(), customerID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, cust)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	field := r.URL.Query().Get("type")
	if field == "" {
		field = "all"
	}

	items, err := h.service.Search(r.Context(), query, field)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"customers": items, "count": len(items)})
}

func (h *Handler) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer ID")
		return
	}

	var req vehicleInputBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	cust, err := h.service.AddVehicle(r.Context(), customerID, req.toDomain(), id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "add_vehicle", "customer", customerID, nil)
	}

	httpserver.Respond(w, http.StatusOK, cust)
}

func (h *Handler) handleRemoveVehicle(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer ID")
		return
	}
	vehicleID, err := uuid.Parse(chi.URLParam(r, "vehicleID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid vehicle ID")
		return
	}

	id := auth.FromContext(r.Context())
	cust, err := h.service.RemoveVehicle(r.Context(), customerID, vehicleID, id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "remove_vehicle", "customer", customerID, nil)
	}

	httpserver.Respond(w, http.StatusOK, cust)
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer ID")
		return
	}

	var req softDeleteRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	if err := h.service.SoftDelete(r.Context(), customerID, req.Reason, id.UserID); err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"reason": req.Reason})
		h.audit.LogFromRequest(r, "delete", "customer", customerID, detail)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleCreateMembership(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer ID")
		return
	}

	var req createMembershipRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	cust, err := h.service.CreateMembership(r.Context(), customerID, req.toServiceRequest(), id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"type": req.Type})
		h.audit.LogFromRequest(r, "create_membership", "customer", customerID, detail)
	}

	httpserver.Respond(w, http.StatusOK, cust)
}

func (h *Handler) handleValidateMembership(w http.ResponseWriter, r *http.Request) {
	var req validateMembershipRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	cust, err := h.service.ValidateMembership(r.Context(), req.MembershipNumber, req.PIN, req.ForVehicleType)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, cust)
}

func (h *Handler) handleDeactivateMembership(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid customer ID")
		return
	}

	id := auth.FromContext(r.Context())
	cust, err := h.service.DeactivateMembership(r.Context(), customerID, id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "deactivate_membership", "customer", customerID, nil)
	}

	httpserver.Respond(w, http.StatusOK, cust)
}
