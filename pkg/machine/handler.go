package machine

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
	"github.com/parklane/parkcore/internal/opsalert"
	"github.com/parklane/parkcore/internal/siteaccess"
)

// Handler provides HTTP handlers for the machine and pallet API.
type Handler struct {
	logger  *slog.Logger
	audit   *audit.Writer
	store   *Store
	service *Service
}

// NewHandler creates a machine Handler backed by the given global pool.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool, alerts *opsalert.Notifier) *Handler {
	store := NewStore(pool)
	return &Handler{
		logger:  logger,
		audit:   auditWriter,
		store:   store,
		service: NewService(store, alerts, logger),
	}
}

// Routes returns a chi.Router with all machine routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/available", h.handleFindAvailable)
	r.Get("/", h.handleList)
	r.With(auth.RequireMinRole(auth.RoleAdmin)).Post("/", h.handleCreate)

	r.Route("/{machineID}", func(mr chi.Router) {
		mr.Use(siteaccess.Middleware(machineSiteResolver{store: h.store}))
		mr.Get("/", h.handleGet)
		mr.Post("/heartbeat", h.handleHeartbeat)
		mr.With(auth.RequireMinRole(auth.RoleSupervisor)).Post("/deactivate", h.handleDeactivate)
		mr.Route("/pallets/{palletKey}", func(pr chi.Router) {
			pr.Post("/occupy", h.handleOccupy)
			pr.Post("/release", h.handleRelease)
			pr.Post("/release-vehicle", h.handleReleaseVehicle)
			pr.With(auth.RequireMinRole(auth.RoleSupervisor)).Post("/maintenance", h.handleMaintenance)
			pr.With(auth.RequireMinRole(auth.RoleSupervisor)).Delete("/maintenance", h.handleClearMaintenance)
		})
	})

	return r
}

// machineSiteResolver resolves siteaccess's site ID by loading the machine
// named in the path, since /machines/{machineID} routes carry a machine ID,
// not a site ID, as their natural key.
type machineSiteResolver struct {
	store *Store
}

func (m machineSiteResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "machineID"))
	if err != nil {
		return uuid.UUID{}, err
	}
	mach, err := m.store.GetByID(r.Context(), id)
	if err != nil {
		return uuid.UUID{}, err
	}
	return mach.SiteID, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	siteID, err := uuid.Parse(r.URL.Query().Get("siteId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "siteId query parameter is required")
		return
	}

	id := auth.FromContext(r.Context())
	svcReq := req.toServiceRequest()
	svcReq.SiteID = siteID
	m, err := h.service.Create(r.Context(), svcReq, id.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"machineCode": m.MachineCode})
		h.audit.LogFromRequest(r, "create", "machine", m.ID, detail)
	}
	httpserver.Respond(w, http.StatusCreated, m)
}

func parseMachineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "machineID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid machine ID")
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r, httpserver.DefaultPageSize)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	status := r.URL.Query().Get("status")

	var siteID *uuid.UUID
	if raw := r.URL.Query().Get("siteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid siteId")
			return
		}
		siteID = &id
	}

	machines, err := h.service.List(r.Context(), siteID, status, params.Limit, params.Offset)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"machines": machines, "count": len(machines)})
}

func (h *Handler) handleFindAvailable(w http.ResponseWriter, r *http.Request) {
	vehicleType := r.URL.Query().Get("vehicleType")
	if vehicleType == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "vehicleType query parameter is required")
		return
	}

	var siteID *uuid.UUID
	if raw := r.URL.Query().Get("siteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid siteId")
			return
		}
		siteID = &id
	}

	machines, err := h.service.FindAvailable(r.Context(), vehicleType, siteID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"machines": machines, "count": len(machines)})
}

func (h *Handler) handleOccupy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}
	palletKey := chi.URLParam(r, "palletKey")

	var req occupyRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid bookingId")
		return
	}

	m, position, err := h.service.OccupyPallet(r.Context(), id, palletKey, bookingID, req.Plate, req.Position)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]any{"palletKey": palletKey, "bookingId": req.BookingID, "position": position})
		h.audit.LogFromRequest(r, "occupy_pallet", "machine", id, detail)
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"machine": m, "position": position})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}

	var req struct {
		BookingID string `json:"bookingId" validate:"required,uuid"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid bookingId")
		return
	}

	m, err := h.service.ReleasePalletByBooking(r.Context(), id, bookingID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "release_pallet", "machine", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleReleaseVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}

	var req releaseVehicleRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.service.ReleaseVehicle(r.Context(), id, req.Plate)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "release_vehicle", "machine", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}
	palletKey := chi.URLParam(r, "palletKey")

	var req maintenanceRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.service.SetPalletMaintenance(r.Context(), id, palletKey, req.Notes)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"palletKey": palletKey, "notes": req.Notes})
		h.audit.LogFromRequest(r, "set_pallet_maintenance", "machine", id, detail)
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleClearMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}
	palletKey := chi.URLParam(r, "palletKey")

	m, err := h.service.ClearPalletMaintenance(r.Context(), id, palletKey)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "clear_pallet_maintenance", "machine", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}

	actorID := auth.FromContext(r.Context())
	m, err := h.service.DeactivateMachine(r.Context(), id, actorID.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "deactivate", "machine", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, m)
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMachineID(w, r)
	if !ok {
		return
	}

	var req heartbeatRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.UpdateHeartbeat(r.Context(), id, req.FirmwareVersion); err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
