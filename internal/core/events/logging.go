package events

import (
	"context"
	"log/slog"
)

// PaymentEventTypes lists every payment lifecycle event the engine emits.
var PaymentEventTypes = []string{
	EventTypePaymentApproved,
	EventTypePaymentDeclined,
	EventTypePaymentReversed,
	EventTypeReversalFailed,
	EventTypePaymentNeedsReview,
	EventTypeStepUpChallengeIssued,
}

// RegisterAuditLog subscribes a structured-log handler to every payment
// lifecycle event, so each transition leaves an audit trail even when no
// downstream collaborator is wired. Reversal failures and review flags log
// at error level; they require operator action.
func RegisterAuditLog(bus *EventBus, logger *slog.Logger) {
	for _, eventType := range PaymentEventTypes {
		bus.Subscribe(eventType, auditHandler(logger))
	}
}

func auditHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		attrs := []any{
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload(),
		}

		switch event.EventType() {
		case EventTypeReversalFailed, EventTypePaymentNeedsReview:
			logger.Error("payment lifecycle event", attrs...)
		default:
			logger.Info("payment lifecycle event", attrs...)
		}
		return nil
	}
}
