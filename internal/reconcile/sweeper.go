// Package reconcile periodically re-checks order payments stuck in the
// pending state against the gateway's own view of the transaction. A
// definitive answer from the status inquiry is applied through the same
// conditional updates the confirmation path uses; anything inconclusive is
// flagged for manual review rather than guessed at.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voltmart/payments/internal/core/datamodel/order"
	"github.com/voltmart/payments/internal/core/events"
	"github.com/voltmart/payments/internal/gateway"
)

// Repository is the subset of payment persistence the sweep needs.
type Repository interface {
	ListStalePending(before time.Time, limit int) ([]*order.OrderPayment, error)
	SetTerminalOutcome(orderID, state, code, message string, raw []byte, settlement *order.SettlementFields) (bool, error)
	MarkNeedsReview(orderID string) (bool, error)
}

type GatewayAPI interface {
	StatusInquiry(ctx context.Context, req *gateway.StatusInquiryRequest, timeout time.Duration) (*gateway.Response, error)
	MerchantID() string
}

type Sweeper struct {
	repo           Repository
	gateway        GatewayAPI
	eventBus       *events.EventBus
	staleAfter     time.Duration
	batchSize      int
	inquiryTimeout time.Duration
	logger         *slog.Logger
}

func NewSweeper(repo Repository, gw GatewayAPI, eventBus *events.EventBus, staleAfter time.Duration, batchSize int, inquiryTimeout time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:           repo,
		gateway:        gw,
		eventBus:       eventBus,
		staleAfter:     staleAfter,
		batchSize:      batchSize,
		inquiryTimeout: inquiryTimeout,
		logger:         logger,
	}
}

// Schedule registers the sweep on the given cron expression and starts the
// scheduler. The returned cron must be stopped by the caller on shutdown.
func (s *Sweeper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("reconcile sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("reconcile sweep scheduled", "schedule", spec, "stale_after", s.staleAfter)
	return c, nil
}

// Sweep processes one batch of stale pending payments.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.staleAfter)
	stale, err := s.repo.ListStalePending(cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("list stale pending: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	s.logger.Info("reconciling stale pending payments", "count", len(stale), "cutoff", cutoff)

	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.reconcileOne(ctx, p)
	}
	return nil
}

func (s *Sweeper) reconcileOne(ctx context.Context, p *order.OrderPayment) {
	if p.StepContext.TraceNumber == "" {
		// Nothing to correlate an inquiry with; a human has to look.
		s.flagForReview(p, "stale pending payment has no trace number")
		return
	}

	resp, err := s.gateway.StatusInquiry(ctx, &gateway.StatusInquiryRequest{
		TraceNumber: p.StepContext.TraceNumber,
		ReferenceID: p.StepContext.ReferenceID,
		MerchantID:  s.gateway.MerchantID(),
	}, s.inquiryTimeout)
	if err != nil {
		// Transient; the next sweep will retry.
		s.logger.Warn("status inquiry failed",
			"order_id", p.OrderID,
			"trace_number", p.StepContext.TraceNumber,
			"error", err)
		return
	}

	switch gateway.Classify(resp.ResponseCode) {
	case gateway.OutcomeApproved, gateway.OutcomePartialApproved:
		s.applyApproval(p, resp)
	case gateway.OutcomeDeclined:
		s.applyDecline(p, resp)
	default:
		// A timeout-class inquiry answer is not a verdict on the original
		// authorization, so the sweep never reverses on its own.
		s.flagForReview(p, fmt.Sprintf("status inquiry returned inconclusive code %s", resp.ResponseCode))
	}
}

func (s *Sweeper) applyApproval(p *order.OrderPayment, resp *gateway.Response) {
	settlement := p.Settlement
	incoming := order.SettlementFields{
		RetrievalRefNumber: resp.RetrievalRefNumber,
		AuthIdentifier:     resp.AuthIdentifier,
		OperationType:      resp.OperationType,
	}
	if resp.TransactionDate != "" && resp.TransactionTime != "" {
		ts, ambiguous, err := gateway.ReconstructTransactionTimestamp(resp.TransactionDate, resp.TransactionTime, time.Now())
		if err != nil {
			s.logger.Warn("could not reconstruct transaction timestamp",
				"order_id", p.OrderID, "error", err)
		} else {
			incoming.TransactionAt = &ts
			incoming.YearAmbiguous = ambiguous
		}
	}
	settlement.Absorb(incoming)

	partial := gateway.Classify(resp.ResponseCode) == gateway.OutcomePartialApproved
	message := gateway.Message(resp.ResponseCode)
	partialNote := ""
	if partial {
		partialNote = gateway.PartialNote(resp)
		message = partialNote
	}

	ok, err := s.repo.SetTerminalOutcome(p.OrderID, order.StateApproved, resp.ResponseCode, message, resp.Raw, &settlement)
	if err != nil {
		s.logger.Error("failed to persist reconciled approval", "order_id", p.OrderID, "error", err)
		return
	}
	if !ok {
		// Another writer resolved it in the meantime; nothing to do.
		return
	}

	s.logger.Info("stale payment reconciled as approved",
		"order_id", p.OrderID,
		"response_code", resp.ResponseCode,
		"partial", partial)

	s.eventBus.Publish(context.Background(),
		events.NewPaymentApprovedEvent(p.OrderID, p.Amount, resp.ResponseCode, partial, partialNote))
}

func (s *Sweeper) applyDecline(p *order.OrderPayment, resp *gateway.Response) {
	message := fmt.Sprintf("%s (code %s)", gateway.Message(resp.ResponseCode), resp.ResponseCode)

	ok, err := s.repo.SetTerminalOutcome(p.OrderID, order.StateDeclined, resp.ResponseCode, message, resp.Raw, nil)
	if err != nil {
		s.logger.Error("failed to persist reconciled decline", "order_id", p.OrderID, "error", err)
		return
	}
	if !ok {
		return
	}

	s.logger.Info("stale payment reconciled as declined",
		"order_id", p.OrderID,
		"response_code", resp.ResponseCode)

	s.eventBus.Publish(context.Background(),
		events.NewPaymentDeclinedEvent(p.OrderID, resp.ResponseCode, message))
}

func (s *Sweeper) flagForReview(p *order.OrderPayment, reason string) {
	ok, err := s.repo.MarkNeedsReview(p.OrderID)
	if err != nil {
		s.logger.Error("failed to flag payment for review", "order_id", p.OrderID, "error", err)
		return
	}
	if !ok {
		return
	}

	s.logger.Warn("payment flagged for manual review", "order_id", p.OrderID, "reason", reason)

	s.eventBus.Publish(context.Background(),
		events.NewPaymentNeedsReviewEvent(p.OrderID, reason))
}
