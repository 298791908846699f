package apierr

import (
	"log/slog"
	"net/http"
	"time"
)

// envelope is the error form of the response shape in spec.md §6.3:
// {success: false, message, errorCode, timestamp}.
type envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// responder is the subset of httpserver.Respond this package needs, kept
// local to avoid an import cycle between apierr and httpserver.
type responder func(w http.ResponseWriter, status int, data any)

// Respond writes err as a JSON error envelope using respond, logging the
// wrapped cause (if any) at warn. Handlers call this as the single exit
// point for any error returned by a service method. logger may be nil (e.g.
// when called from middleware ahead of any handler-scoped logger), in which
// case logging is skipped.
func Respond(w http.ResponseWriter, respond responder, logger *slog.Logger, err error) {
	apiErr := As(err)

	if logger != nil {
		if apiErr.Kind == KindInternal && apiErr.Err != nil {
			logger.Error("unhandled internal error", "error", apiErr.Err)
		} else if apiErr.Err != nil {
			logger.Warn("request failed", "kind", apiErr.Kind, "error", apiErr.Err)
		}
	}

	message := apiErr.Message
	if apiErr.Kind == KindInternal {
		message = "an internal error occurred"
	}

	respond(w, apiErr.Kind.StatusCode(), envelope{
		Success:   false,
		Message:   message,
		ErrorCode: string(apiErr.Kind),
		Timestamp: time.Now().UTC(),
	})
}
