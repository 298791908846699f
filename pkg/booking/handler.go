package booking

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/audit"
	"github.com/parklane/parkcore/internal/auth"
	"github.com/parklane/parkcore/internal/httpserver"
	"github.com/parklane/parkcore/internal/siteaccess"
	"github.com/parklane/parkcore/pkg/customer"
	"github.com/parklane/parkcore/pkg/machine"
)

// Handler provides HTTP handlers for the booking API.
type Handler struct {
	logger  *slog.Logger
	audit   *audit.Writer
	store   *Store
	service *Service
}

// NewHandler creates a booking Handler backed by the given global pool.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool, machines *machine.Service, machineStore *machine.Store, customers *customer.Service) *Handler {
	store := NewStore(pool)
	return &Handler{
		logger:  logger,
		audit:   auditWriter,
		store:   store,
		service: NewService(store, machines, machineStore, customers, logger),
	}
}

// Routes returns a chi.Router with all booking routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.handleList)
	r.Get("/search", h.handleSearch)
	r.Get("/active", h.handleActive)
	r.Get("/stats", h.handleStats)
	r.Get("/by-machine/{machineNumber}", h.handleByMachine)
	r.Get("/by-vehicle/{plate}", h.handleByVehicle)
	r.Post("/verify-otp", h.handleVerifyOTP)

	r.Route("/", func(sr chi.Router) {
		sr.Use(siteaccess.Middleware(querySiteResolver{}))
		sr.Post("/", h.handleCreate)
	})

	r.Route("/{bookingID}", func(br chi.Router) {
		br.Get("/", h.handleGet)
		br.Post("/complete", h.handleComplete)
		br.Post("/cancel", h.handleCancel)
		br.Post("/extend", h.handleExtend)
		br.Post("/regenerate-otp", h.handleRegenerateOTP)
	})

	return r
}

// querySiteResolver resolves siteaccess's site ID from the siteId query
// string parameter, since booking creation carries its site as a query
// parameter rather than a path segment. Per spec.md §4.E.1 step 1, a missing
// siteId falls back to the actor's primary site, then its first assigned
// site; if neither is available the request fails with NoSiteContext.
type querySiteResolver struct{}

func (querySiteResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("siteId"); raw != "" {
		return uuid.Parse(raw)
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		return uuid.UUID{}, apierr.New(apierr.KindNoSiteContext, "siteId is required and no actor site context is available")
	}
	if identity.PrimarySite != nil {
		return *identity.PrimarySite, nil
	}
	if len(identity.AssignedSites) > 0 {
		return identity.AssignedSites[0].SiteID, nil
	}
	return uuid.UUID{}, apierr.New(apierr.KindNoSiteContext, "siteId was omitted and the actor has no primary or assigned site")
}

func parseBookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid booking ID")
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	// siteaccess.Middleware (wired with querySiteResolver in Routes) has
	// already resolved and authorized the site, falling back to the
	// actor's primary/assigned site when siteId was omitted.
	siteID, ok := siteaccess.FromContext(r.Context())
	if !ok {
		apierr.Respond(w, httpserver.Respond, h.logger, apierr.New(apierr.KindNoSiteContext, "no site context resolved for this request"))
		return
	}

	identity := auth.FromContext(r.Context())
	svcReq := req.toServiceRequest()
	svcReq.SiteID = siteID

	result, err := h.service.CreateBooking(r.Context(), svcReq, identity.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"bookingNumber": result.Booking.BookingNumber})
		h.audit.LogFromRequest(r, "create", "booking", result.Booking.ID, detail)
	}
	httpserver.Respond(w, http.StatusCreated, map[string]any{
		"booking":             result.Booking,
		"isNewCustomer":       result.IsNewCustomer,
		"customerNameUpdated": result.CustomerNameUpdated,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBookingID(w, r)
	if !ok {
		return
	}
	b, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, apierr.NotFound("booking"))
		return
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r, httpserver.DefaultPageSize)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	q := r.URL.Query()

	var f ListFilters
	if raw := q.Get("siteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid siteId")
			return
		}
		f.SiteID = &id
	}
	f.Status = q.Get("status")
	f.MachineNumber = q.Get("machineNumber")
	f.VehicleNumber = q.Get("vehicleNumber")
	f.Search = q.Get("search")
	if raw := q.Get("dateFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid dateFrom")
			return
		}
		f.DateFrom = &t
	}
	if raw := q.Get("dateTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid dateTo")
			return
		}
		f.DateTo = &t
	}

	bookings, total, err := h.service.ListBookings(r.Context(), f, params.Limit, params.Offset)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(bookings, params, total))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("filter")
	query := r.URL.Query().Get("q")
	if query == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "q query parameter is required")
		return
	}

	bookings, err := h.service.SearchBookings(r.Context(), field, query)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

func (h *Handler) handleByMachine(w http.ResponseWriter, r *http.Request) {
	machineNumber := chi.URLParam(r, "machineNumber")
	status := r.URL.Query().Get("status")

	bookings, err := h.service.GetBookingsByMachine(r.Context(), machineNumber, status)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

func (h *Handler) handleByVehicle(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plate")

	bookings, err := h.service.GetBookingsByVehicle(r.Context(), plate)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.GetActiveBookings(r.Context())
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "from query parameter must be an RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "to query parameter must be an RFC3339 timestamp")
		return
	}

	stats, err := h.service.GetBookingStats(r.Context(), from, to)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.service.VerifyOTP(r.Context(), req.Code)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "verify_otp", "booking", b.ID, nil)
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBookingID(w, r)
	if !ok {
		return
	}
	var req completeRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromContext(r.Context())
	b, err := h.service.CompleteBooking(r.Context(), id, CompleteRequest{
		Amount:            req.Amount,
		Method:            req.Method,
		TransactionRef:    req.TransactionRef,
		MembershipNumber:  req.MembershipNumber,
		BaseRate:          req.BaseRate,
		AdditionalCharges: req.AdditionalCharges,
		Discount:          req.Discount,
		Tax:               req.Tax,
	}, identity.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "complete", "booking", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBookingID(w, r)
	if !ok {
		return
	}
	var req cancelRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromContext(r.Context())
	b, err := h.service.CancelBooking(r.Context(), id, req.Reason, identity.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		detail, _ := json.Marshal(map[string]string{"reason": req.Reason})
		h.audit.LogFromRequest(r, "cancel", "booking", id, detail)
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBookingID(w, r)
	if !ok {
		return
	}
	var req extendRequestBody
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromContext(r.Context())
	b, err := h.service.ExtendBooking(r.Context(), id, req.Hours, req.Minutes, identity.UserID)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "extend", "booking", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleRegenerateOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBookingID(w, r)
	if !ok {
		return
	}

	b, err := h.service.RegenerateOTP(r.Context(), id)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "regenerate_otp", "booking", id, nil)
	}
	httpserver.Respond(w, http.StatusOK, b)
}
