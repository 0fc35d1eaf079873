package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

func (h *BaseHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return logger.LoggerWrapper()
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger().Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.logger().Error("http error", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"code":    status,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.logger().Error("failed to encode error response", "error", err)
	}
}

// HandleError writes a structured AppError envelope.
func (h *BaseHandler) HandleError(w http.ResponseWriter, appErr *errors.AppError) {
	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// HandleServiceError maps any service error onto the AppError envelope,
// hiding internals behind a generic message when the error is not typed.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := errors.IsAppError(err); ok {
		h.HandleError(w, appErr)
		return
	}
	h.logger().Error("unhandled service error", "error", err)
	h.HandleError(w, errors.NewInternalError("internal server error", err))
}
