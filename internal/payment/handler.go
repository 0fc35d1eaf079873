package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	StateMachine *StateMachine
	StepUp       *StepUpRedirector
	Logger       *slog.Logger
}

func NewHandler(stateMachine *StateMachine, stepUp *StepUpRedirector, logger *slog.Logger) *Handler {
	return &Handler{
		StateMachine: stateMachine,
		StepUp:       stepUp,
		Logger:       logger,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreatePayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	record, err := h.StateMachine.CreatePayment(&req)
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err, "order_id", req.OrderID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreatePayment: record created",
		"order_id", req.OrderID,
		"payment_method", req.PaymentMethod)

	h.WriteJSON(w, http.StatusCreated, record)
}

// ConfirmPayment handles POST /api/v1/payments/{orderID}/confirm
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("ConfirmPayment: failed to parse request body", "error", err, "order_id", orderID)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	req.OrderID = orderID

	result, err := h.StateMachine.Confirm(errors.ContextWithOrderID(r.Context(), orderID), &req)
	if err != nil {
		h.Logger.Error("ConfirmPayment: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ConfirmPayment: step processed",
		"order_id", orderID,
		"payment_state", result.PaymentState,
		"requires_step_up", result.RequiresStepUp)

	h.WriteJSON(w, http.StatusOK, result)
}

// FinalizePayment handles POST /api/v1/payments/{orderID}/finalize
func (h *Handler) FinalizePayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("FinalizePayment: failed to parse request body", "error", err, "order_id", orderID)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	req.OrderID = orderID

	result, err := h.StateMachine.Finalize(errors.ContextWithOrderID(r.Context(), orderID), &req)
	if err != nil {
		h.Logger.Error("FinalizePayment: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("FinalizePayment: step processed",
		"order_id", orderID,
		"payment_state", result.PaymentState)

	h.WriteJSON(w, http.StatusOK, result)
}

// StepUpReturn handles POST /api/v1/payments/stepup/return. The browser
// comes back here after the challenge round trip. The signed return token
// decides which order resumes; nothing else from the browser is trusted.
func (h *Handler) StepUpReturn(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			token = body.Token
		}
	}
	if token == "" {
		h.HandleError(w, errors.NewValidationError("return token is required", errors.ErrCodeValidationFailed))
		return
	}

	orderID, err := h.StepUp.VerifyReturnToken(token)
	if err != nil {
		h.Logger.Error("StepUpReturn: token rejected", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.StateMachine.Finalize(errors.ContextWithOrderID(r.Context(), orderID), &FinalizeRequest{OrderID: orderID})
	if err != nil {
		h.Logger.Error("StepUpReturn: finalize error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("StepUpReturn: challenge round trip completed",
		"order_id", orderID,
		"payment_state", result.PaymentState)

	h.WriteJSON(w, http.StatusOK, result)
}

// GetPayment handles GET /api/v1/payments/{orderID}. It returns the persisted record,
// consumed by the voucher collaborator and support tooling.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	record, err := h.StateMachine.GetByOrderID(orderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, record)
}

// ListAttention handles GET /api/v1/payments/attention, listing records requiring
// operator intervention: failed reversals and sweep-flagged orders.
func (h *Handler) ListAttention(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := h.StateMachine.ListAttention(limit)
	if err != nil {
		h.Logger.Error("ListAttention: service error", "error", err)
		h.HandleServiceError(w, errors.NewInternalError("failed to list attention records", err))
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}
