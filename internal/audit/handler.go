package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/httpserver"
)

// Handler provides HTTP handlers for the audit log API. Routes applies no
// role check of its own, and internal/app does not mount this handler.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// Routes returns a chi.Router with audit log routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

// record mirrors one row of the audit_log table for JSON serialization.
type record struct {
	ID         uuid.UUID `json:"id"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	OperatorID *string   `json:"operatorId,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID *uuid.UUID `json:"resourceId,omitempty"`
	IPAddress  *string   `json:"ipAddress,omitempty"`
	UserAgent  *string   `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r, httpserver.DefaultPageSize)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx := r.Context()

	var total int
	if err := h.pool.QueryRow(ctx, "SELECT count(*) FROM audit_log").Scan(&total); err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, apierr.Wrap(apierr.KindInternal, "failed to count audit log", err))
		return
	}

	rows, err := h.pool.Query(ctx, `
		SELECT id, user_id, operator_id, action, resource, resource_id, ip_address, user_agent, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, params.Limit, params.Offset)
	if err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, apierr.Wrap(apierr.KindInternal, "failed to list audit log", err))
		return
	}
	defer rows.Close()

	entries := make([]record, 0, params.Limit)
	for rows.Next() {
		var rec record
		var ip *string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.OperatorID, &rec.Action, &rec.Resource, &rec.ResourceID, &ip, &rec.UserAgent, &rec.CreatedAt); err != nil {
			apierr.Respond(w, httpserver.Respond, h.logger, apierr.Wrap(apierr.KindInternal, "failed to scan audit log row", err))
			return
		}
		rec.IPAddress = ip
		entries = append(entries, rec)
	}
	if err := rows.Err(); err != nil {
		apierr.Respond(w, httpserver.Respond, h.logger, apierr.Wrap(apierr.KindInternal, "failed to read audit log", err))
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(entries, params, total))
}
