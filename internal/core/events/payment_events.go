package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentApproved       = "payment.approved"
	EventTypePaymentDeclined       = "payment.declined"
	EventTypePaymentReversed       = "payment.reversed"
	EventTypeReversalFailed        = "payment.reversal_failed"
	EventTypePaymentNeedsReview    = "payment.needs_review"
	EventTypeStepUpChallengeIssued = "payment.stepup_issued"
)

type PaymentApprovedEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"`
	ResponseCode string `json:"response_code"`
	// Partial approvals terminate as approved but fulfillment decides
	// whether the partial amount is acceptable.
	Partial     bool   `json:"partial"`
	PartialNote string `json:"partial_note,omitempty"`
}

func NewPaymentApprovedEvent(orderID string, amount int64, responseCode string, partial bool, partialNote string) *PaymentApprovedEvent {
	return &PaymentApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":      orderID,
				"amount":        amount,
				"response_code": responseCode,
				"partial":       partial,
				"partial_note":  partialNote,
			},
		},
		OrderID:      orderID,
		Amount:       amount,
		ResponseCode: responseCode,
		Partial:      partial,
		PartialNote:  partialNote,
	}
}

type PaymentDeclinedEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	ResponseCode string `json:"response_code"`
	Message      string `json:"message"`
}

func NewPaymentDeclinedEvent(orderID, responseCode, message string) *PaymentDeclinedEvent {
	return &PaymentDeclinedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentDeclined,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":      orderID,
				"response_code": responseCode,
				"message":       message,
			},
		},
		OrderID:      orderID,
		ResponseCode: responseCode,
		Message:      message,
	}
}

type PaymentReversedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	TraceNumber string `json:"trace_number"`
	Amount      int64  `json:"amount"`
	// Which protocol step detected the timeout that forced the reversal.
	DetectedAtStep string `json:"detected_at_step"`
}

func NewPaymentReversedEvent(orderID, traceNumber string, amount int64, detectedAtStep string) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentReversed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":         orderID,
				"trace_number":     traceNumber,
				"amount":           amount,
				"detected_at_step": detectedAtStep,
			},
		},
		OrderID:        orderID,
		TraceNumber:    traceNumber,
		Amount:         amount,
		DetectedAtStep: detectedAtStep,
	}
}

// ReversalFailedEvent is the most severe signal in the engine: money may
// have been captured with no compensating reversal. Operations must act on
// it; it is never silently retried.
type ReversalFailedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	TraceNumber string `json:"trace_number"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
}

func NewReversalFailedEvent(orderID, traceNumber string, amount int64, reason string) *ReversalFailedEvent {
	return &ReversalFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeReversalFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":     orderID,
				"trace_number": traceNumber,
				"amount":       amount,
				"reason":       reason,
			},
		},
		OrderID:     orderID,
		TraceNumber: traceNumber,
		Amount:      amount,
		Reason:      reason,
	}
}

type StepUpChallengeIssuedEvent struct {
	BaseEvent
	OrderID         string `json:"order_id"`
	DSTransactionID string `json:"ds_transaction_id"`
}

func NewStepUpChallengeIssuedEvent(orderID, dsTransactionID string) *StepUpChallengeIssuedEvent {
	return &StepUpChallengeIssuedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeStepUpChallengeIssued,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":          orderID,
				"ds_transaction_id": dsTransactionID,
			},
		},
		OrderID:         orderID,
		DSTransactionID: dsTransactionID,
	}
}

type PaymentNeedsReviewEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func NewPaymentNeedsReviewEvent(orderID, reason string) *PaymentNeedsReviewEvent {
	return &PaymentNeedsReviewEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentNeedsReview,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id": orderID,
				"reason":   reason,
			},
		},
		OrderID: orderID,
		Reason:  reason,
	}
}
