package payment

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/internal/core/datamodel/order"
	"github.com/voltmart/payments/internal/core/events"
	"github.com/voltmart/payments/internal/gateway"
)

// Message-type identifiers, fixed by the gateway contract and preserved
// verbatim on every step.
const (
	msgTypeConfirm      = "0200"
	msgTypeFinalConfirm = "0220"
)

// ErrDuplicateOrderPayment is returned by Repository.Create when a record
// already exists for the order.
var ErrDuplicateOrderPayment = goerrors.New("order payment already exists")

// Repository is the persistence contract for order payment records. All
// state-changing operations are conditional updates: a false return means
// another writer already advanced the record and the caller must re-read.
type Repository interface {
	Create(p *order.OrderPayment) error
	GetByOrderID(orderID string) (*order.OrderPayment, error)
	SaveStepContext(orderID string, stepCtx order.StepContext) (bool, error)
	AdvanceToChallenge(orderID string, stepCtx order.StepContext, raw []byte, code, message string) (bool, error)
	SetTerminalOutcome(orderID, state, code, message string, raw []byte, settlement *order.SettlementFields) (bool, error)
	ClaimReversal(orderID string) (bool, error)
	MarkNeedsReview(orderID string) (bool, error)
	ListStalePending(before time.Time, limit int) ([]*order.OrderPayment, error)
	ListAttention(limit int) ([]*order.OrderPayment, error)
}

type GatewayAPI interface {
	Confirm(ctx context.Context, req *gateway.ConfirmRequest, timeout time.Duration) (*gateway.Response, error)
	FinalConfirm(ctx context.Context, req *gateway.FinalConfirmRequest, timeout time.Duration) (*gateway.Response, error)
	MerchantID() string
	TerminalID() string
}

type ReversalAPI interface {
	Reverse(ctx context.Context, originalTraceNumber string, originalAmount int64, retrievalRef string) ReversalOutcome
}

// StateMachine orchestrates the confirmation choreography for one order:
// builds each step's payload from state accumulated in prior steps, invokes
// the gateway, classifies the result, compensates timeouts with a reversal,
// and computes the next transition. It is the only writer of payment state.
type StateMachine struct {
	repo           Repository
	gateway        GatewayAPI
	reversals      ReversalAPI
	guard          InFlightGuard
	stepUp         *StepUpRedirector
	eventBus       *events.EventBus
	confirmTimeout time.Duration
	logger         *slog.Logger
}

func NewStateMachine(
	repo Repository,
	gw GatewayAPI,
	reversals ReversalAPI,
	guard InFlightGuard,
	stepUp *StepUpRedirector,
	eventBus *events.EventBus,
	confirmTimeout time.Duration,
	logger *slog.Logger,
) *StateMachine {
	return &StateMachine{
		repo:           repo,
		gateway:        gw,
		reversals:      reversals,
		guard:          guard,
		stepUp:         stepUp,
		eventBus:       eventBus,
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}
}

// CreatePayment opens the pending record when an order elects a payment
// method at checkout. For card payments the step-1 authorization context
// handed over by the checkout seeds the step context.
func (s *StateMachine) CreatePayment(req *CreatePaymentRequest) (*order.OrderPayment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &order.OrderPayment{
		OrderID:       req.OrderID,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
		PaymentState:  order.StatePending,
		CurrentStep:   order.StepConfirm,
		StepContext: order.StepContext{
			TraceNumber:      req.TraceNumber,
			ProcessingCode:   req.ProcessingCode,
			POSEntryMode:     req.POSEntryMode,
			NetworkID:        req.NetworkID,
			POSConditionCode: req.POSConditionCode,
			OrderInfo:        req.OrderInfo,
			AdditionalData:   req.AdditionalData,
		},
	}

	if err := s.repo.Create(p); err != nil {
		s.logger.Error("failed to create order payment record",
			"error", err, "order_id", req.OrderID)
		if goerrors.Is(err, ErrDuplicateOrderPayment) {
			return nil, errors.ErrOrderPaymentExists
		}
		return nil, errors.NewInternalError("failed to create order payment record", err)
	}

	s.logger.Info("order payment record created",
		"order_id", p.OrderID,
		"payment_method", p.PaymentMethod,
		"amount", p.Amount)

	return p, nil
}

func (s *StateMachine) GetByOrderID(orderID string) (*order.OrderPayment, error) {
	p, err := s.repo.GetByOrderID(orderID)
	if err != nil {
		return nil, errors.ErrOrderPaymentNotFound
	}
	return p, nil
}

func (s *StateMachine) ListAttention(limit int) ([]*order.OrderPayment, error) {
	return s.repo.ListAttention(limit)
}

// Confirm drives the step-3 authorization confirmation: check the gateway's
// decision on the step-1 authorization and learn whether a step-up challenge
// is required.
func (s *StateMachine) Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.loadCardPayment(req.OrderID)
	if err != nil {
		return nil, err
	}

	// Terminal records short-circuit: a duplicate submission observes the
	// already-persisted outcome, the gateway is never re-invoked.
	if p.IsTerminal() {
		return s.resultFromRecord(p), nil
	}

	// While a challenge is outstanding, a duplicate confirm re-issues the
	// stored hand-off instead of replaying the gateway call.
	if p.CurrentStep == order.StepChallenge {
		return s.challengeResult(p)
	}

	if p.CurrentStep != order.StepConfirm {
		return nil, errors.ErrStepOutOfOrder
	}

	release, acquired, err := s.acquireGuard(ctx, p.OrderID, order.StepConfirm)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return s.awaitPeerOutcome(ctx, p.OrderID, order.StepConfirm)
	}
	defer release()

	// Reference data supplied by the caller joins the step context so the
	// final confirmation can be rebuilt after the challenge round trip. It
	// is persisted before the gateway call: should the call end without a
	// verdict, the reconcile sweep needs the trace number to run its
	// status inquiry.
	p.StepContext.Absorb(order.StepContext{
		ReferenceID: req.ReferenceID,
		TraceNumber: req.TraceNumber,
	})
	if _, err := s.repo.SaveStepContext(p.OrderID, p.StepContext); err != nil {
		return nil, errors.NewInternalError("failed to persist step context", err)
	}

	payload := s.buildConfirmPayload(p, req.ReferenceID, req.TraceNumber)

	s.logger.Info("confirming authorization",
		"order_id", p.OrderID,
		"trace_number", payload.TraceNumber,
		"reference_id", payload.ReferenceID)

	resp, err := s.gateway.Confirm(ctx, payload, s.confirmTimeout)
	if err != nil {
		return s.handleGatewayError(ctx, p, order.StepConfirm, err)
	}

	if resp.RequiresStepUp() {
		return s.enterChallenge(p, resp)
	}

	return s.applyOutcome(ctx, p, resp, order.StepConfirm)
}

// Finalize drives the step-5 final confirmation after the step-up challenge
// round trip returned control to the application.
func (s *StateMachine) Finalize(ctx context.Context, req *FinalizeRequest) (*ConfirmResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.loadCardPayment(req.OrderID)
	if err != nil {
		return nil, err
	}

	if p.IsTerminal() {
		return s.resultFromRecord(p), nil
	}

	// A final confirmation for an order that never entered (or needed) the
	// challenge is a protocol violation, not a duplicate.
	if p.CurrentStep != order.StepChallenge {
		return nil, errors.ErrStepOutOfOrder
	}

	release, acquired, err := s.acquireGuard(ctx, p.OrderID, order.StepFinalConfirm)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return s.awaitPeerOutcome(ctx, p.OrderID, order.StepFinalConfirm)
	}
	defer release()

	referenceID := req.ReferenceID
	if referenceID == "" {
		referenceID = p.StepContext.ReferenceID
	}

	payload := &gateway.FinalConfirmRequest{
		ConfirmRequest: *s.buildConfirmPayload(p, referenceID, ""),
		// The directory-server transaction identifier captured during
		// step 3 is authoritative: the gateway itself echoed it back.
		DSTransactionID: p.StepContext.DSTransactionID,
	}
	payload.MessageType = msgTypeFinalConfirm

	s.logger.Info("finalizing after step-up challenge",
		"order_id", p.OrderID,
		"trace_number", payload.TraceNumber,
		"ds_transaction_id", payload.DSTransactionID)

	resp, err := s.gateway.FinalConfirm(ctx, payload, s.confirmTimeout)
	if err != nil {
		return s.handleGatewayError(ctx, p, order.StepFinalConfirm, err)
	}

	return s.applyOutcome(ctx, p, resp, order.StepFinalConfirm)
}

func (s *StateMachine) loadCardPayment(orderID string) (*order.OrderPayment, error) {
	p, err := s.repo.GetByOrderID(orderID)
	if err != nil {
		return nil, errors.ErrOrderPaymentNotFound
	}
	if p.PaymentMethod != order.MethodCard {
		return nil, errors.ErrNotCardPayment
	}
	return p, nil
}

func (s *StateMachine) acquireGuard(ctx context.Context, orderID, step string) (func(), bool, error) {
	ok, err := s.guard.Acquire(ctx, orderID, step, s.guardTTL())
	if err != nil {
		return nil, false, errors.NewInternalError("failed to acquire confirmation guard", err)
	}
	if !ok {
		s.logger.Warn("duplicate confirmation, one already in flight",
			"order_id", orderID, "step", step)
		return nil, false, nil
	}
	return func() { s.guard.Release(ctx, orderID, step) }, true, nil
}

// guardTTL outlives the gateway deadline slightly so the guard cannot lapse
// while the call is still on the wire.
func (s *StateMachine) guardTTL() time.Duration {
	return s.confirmTimeout + 10*time.Second
}

// awaitPeerOutcome rides a duplicate submission along on the confirmation
// already in flight for the same order and step: it polls the record until
// the holder of the guard persists its outcome, then reports that outcome.
// Exactly one gateway call services both submissions.
func (s *StateMachine) awaitPeerOutcome(ctx context.Context, orderID, step string) (*ConfirmResult, error) {
	deadline := time.NewTimer(s.guardTTL())
	defer deadline.Stop()
	poll := time.NewTicker(25 * time.Millisecond)
	defer poll.Stop()

	for {
		current, err := s.repo.GetByOrderID(orderID)
		if err != nil {
			return nil, errors.NewInternalError("failed to reload order payment", err)
		}
		if current.IsTerminal() {
			return s.resultFromRecord(current), nil
		}
		if step == order.StepConfirm && current.CurrentStep == order.StepChallenge {
			return s.challengeResult(current)
		}

		// A released guard with an unchanged record means the peer's call
		// ended without a gateway verdict; the submission is retryable.
		acquired, err := s.guard.Acquire(ctx, orderID, step, s.guardTTL())
		if err != nil {
			return nil, errors.NewInternalError("failed to check confirmation guard", err)
		}
		if acquired {
			current, err = s.repo.GetByOrderID(orderID)
			s.guard.Release(ctx, orderID, step)
			if err != nil {
				return nil, errors.NewInternalError("failed to reload order payment", err)
			}
			if current.IsTerminal() {
				return s.resultFromRecord(current), nil
			}
			if step == order.StepConfirm && current.CurrentStep == order.StepChallenge {
				return s.challengeResult(current)
			}
			return nil, errors.NewExternalError(
				"payment confirmation ended without a gateway verdict, please try again later",
				errors.ErrCodeGatewayUnreachable,
				errors.ErrGatewayUnreachable.StatusCode,
			)
		}

		select {
		case <-ctx.Done():
			return nil, errors.ErrConfirmationInFlight
		case <-deadline.C:
			return nil, errors.ErrConfirmationInFlight
		case <-poll.C:
		}
	}
}

func (s *StateMachine) buildConfirmPayload(p *order.OrderPayment, referenceID, fallbackTrace string) *gateway.ConfirmRequest {
	ctx := p.StepContext

	trace := ctx.TraceNumber
	if trace == "" {
		trace = fallbackTrace
	}

	return &gateway.ConfirmRequest{
		TraceNumber:      trace,
		ReferenceID:      referenceID,
		MessageType:      msgTypeConfirm,
		ProcessingCode:   ctx.ProcessingCode,
		POSEntryMode:     ctx.POSEntryMode,
		NetworkID:        ctx.NetworkID,
		POSConditionCode: ctx.POSConditionCode,
		OrderInfo:        ctx.OrderInfo,
		AdditionalData:   ctx.AdditionalData,
		MerchantID:       s.gateway.MerchantID(),
		TerminalID:       s.gateway.TerminalID(),
	}
}

func (s *StateMachine) handleGatewayError(ctx context.Context, p *order.OrderPayment, step string, err error) (*ConfirmResult, error) {
	if goerrors.Is(err, gateway.ErrTimeout) {
		s.logger.Error("gateway deadline exceeded, compensating",
			"order_id", p.OrderID, "step", step)
		// No response payload exists; the record keeps the last one.
		return s.compensateTimeout(ctx, p, step, nil)
	}

	if goerrors.Is(err, gateway.ErrUnreachable) {
		// The gateway's view of the transaction is unknown: reversing a
		// trace number the gateway may never have seen risks rejecting a
		// transaction it already declined. The order stays pending for
		// manual reconciliation.
		s.logger.Error("gateway unreachable, order left pending",
			"order_id", p.OrderID, "step", step, "error", err)
		return nil, errors.NewExternalError(
			"payment gateway unreachable, please try again later",
			errors.ErrCodeGatewayUnreachable,
			errors.ErrGatewayUnreachable.StatusCode,
		).WithCause(err)
	}

	return nil, errors.NewInternalError("gateway call failed", err)
}

func (s *StateMachine) enterChallenge(p *order.OrderPayment, resp *gateway.Response) (*ConfirmResult, error) {
	stepCtx := p.StepContext
	stepCtx.Absorb(order.StepContext{
		DSTransactionID: resp.DSTransactionID,
		AccessToken:     resp.AccessToken,
		DeviceDataURL:   resp.DeviceDataURL,
		ChallengeURL:    resp.ChallengeURL,
	})

	ok, err := s.repo.AdvanceToChallenge(p.OrderID, stepCtx, resp.Raw, resp.ResponseCode, gateway.Message(resp.ResponseCode))
	if err != nil {
		return nil, errors.NewInternalError("failed to persist step-up context", err)
	}
	if !ok {
		// Another writer advanced the record first; fall back to whatever
		// it persisted.
		return s.reloadResult(p.OrderID)
	}

	p.StepContext = stepCtx
	p.CurrentStep = order.StepChallenge

	s.logger.Info("step-up challenge required",
		"order_id", p.OrderID,
		"ds_transaction_id", stepCtx.DSTransactionID)

	s.eventBus.Publish(context.Background(),
		events.NewStepUpChallengeIssuedEvent(p.OrderID, stepCtx.DSTransactionID))

	return s.challengeResult(p)
}

func (s *StateMachine) challengeResult(p *order.OrderPayment) (*ConfirmResult, error) {
	challenge, err := s.stepUp.BuildChallenge(p)
	if err != nil {
		return nil, errors.NewInternalError("failed to build step-up challenge", err)
	}

	return &ConfirmResult{
		OrderID:        p.OrderID,
		PaymentState:   p.PaymentState,
		RequiresStepUp: true,
		AccessToken:    challenge.AccessToken,
		DeviceDataURL:  challenge.DeviceDataURL,
		ChallengeURL:   challenge.ChallengeURL,
		ReturnToken:    challenge.ReturnToken,
		Message:        "additional cardholder authentication required",
	}, nil
}

func (s *StateMachine) applyOutcome(ctx context.Context, p *order.OrderPayment, resp *gateway.Response, step string) (*ConfirmResult, error) {
	outcome := gateway.Classify(resp.ResponseCode)

	switch outcome {
	case gateway.OutcomeTimeoutClass:
		// The call returned, but with a code saying the transaction's
		// state is unknown to the merchant. Same compensation as a
		// transport timeout.
		s.logger.Error("timeout-class response code, compensating",
			"order_id", p.OrderID,
			"step", step,
			"response_code", resp.ResponseCode)
		return s.compensateTimeout(ctx, p, step, resp.Raw)

	case gateway.OutcomeApproved, gateway.OutcomePartialApproved:
		return s.approve(p, resp, outcome)

	default:
		return s.decline(p, resp)
	}
}

func (s *StateMachine) approve(p *order.OrderPayment, resp *gateway.Response, outcome gateway.Outcome) (*ConfirmResult, error) {
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
				"order_id", p.OrderID,
				"transaction_date", resp.TransactionDate,
				"transaction_time", resp.TransactionTime,
				"error", err)
		} else {
			incoming.TransactionAt = &ts
			incoming.YearAmbiguous = ambiguous
		}
	}

	settlement.Absorb(incoming)

	partial := outcome == gateway.OutcomePartialApproved
	message := gateway.Message(resp.ResponseCode)
	partialNote := ""
	if partial {
		partialNote = gateway.PartialNote(resp)
		message = partialNote
	}

	ok, err := s.repo.SetTerminalOutcome(p.OrderID, order.StateApproved, resp.ResponseCode, message, resp.Raw, &settlement)
	if err != nil {
		return nil, errors.NewInternalError("failed to persist approval", err)
	}
	if !ok {
		return s.reloadResult(p.OrderID)
	}

	s.logger.Info("payment approved",
		"order_id", p.OrderID,
		"response_code", resp.ResponseCode,
		"partial", partial,
		"retrieval_ref", settlement.RetrievalRefNumber)

	s.eventBus.Publish(context.Background(),
		events.NewPaymentApprovedEvent(p.OrderID, p.Amount, resp.ResponseCode, partial, partialNote))

	return &ConfirmResult{
		OrderID:         p.OrderID,
		Approved:        true,
		PaymentState:    order.StateApproved,
		ResponseCode:    resp.ResponseCode,
		Message:         message,
		PartialApproved: partial,
		PartialNote:     partialNote,
	}, nil
}

func (s *StateMachine) decline(p *order.OrderPayment, resp *gateway.Response) (*ConfirmResult, error) {
	// The raw code rides along for support reference.
	message := fmt.Sprintf("%s (code %s)", gateway.Message(resp.ResponseCode), resp.ResponseCode)

	ok, err := s.repo.SetTerminalOutcome(p.OrderID, order.StateDeclined, resp.ResponseCode, message, resp.Raw, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to persist decline", err)
	}
	if !ok {
		return s.reloadResult(p.OrderID)
	}

	s.logger.Info("payment declined",
		"order_id", p.OrderID,
		"response_code", resp.ResponseCode)

	s.eventBus.Publish(context.Background(),
		events.NewPaymentDeclinedEvent(p.OrderID, resp.ResponseCode, message))

	return &ConfirmResult{
		OrderID:      p.OrderID,
		Approved:     false,
		PaymentState: order.StateDeclined,
		ResponseCode: resp.ResponseCode,
		Message:      message,
	}, nil
}

// reversedResponseCode is recorded on the record after a successful
// compensating reversal.
const reversedResponseCode = "TIMEOUT"

func (s *StateMachine) compensateTimeout(ctx context.Context, p *order.OrderPayment, step string, raw []byte) (*ConfirmResult, error) {
	claimed, err := s.repo.ClaimReversal(p.OrderID)
	if err != nil {
		return nil, errors.NewInternalError("failed to claim reversal", err)
	}
	if !claimed {
		// Another invocation already owns the reversal for this record;
		// report its outcome instead of reversing twice.
		s.logger.Warn("reversal already attempted for order", "order_id", p.OrderID)
		current, err := s.repo.GetByOrderID(p.OrderID)
		if err != nil {
			return nil, errors.NewInternalError("failed to reload order payment", err)
		}
		if current.IsTerminal() {
			return s.resultFromRecord(current), nil
		}
		return nil, errors.ErrConfirmationInFlight
	}

	// The reversal references the step-1-originated trace number, never one
	// generated by a later step.
	traceNumber := p.StepContext.TraceNumber

	outcome := s.reversals.Reverse(ctx, traceNumber, p.Amount, p.Settlement.RetrievalRefNumber)

	if outcome.Success {
		message := "Transaction exceeded time limit; automatic reversal executed"
		if step == order.StepFinalConfirm {
			message = "Transaction exceeded time limit during final confirmation; automatic reversal executed"
		}

		ok, err := s.repo.SetTerminalOutcome(p.OrderID, order.StateReversed, reversedResponseCode, message, raw, nil)
		if err != nil {
			return nil, errors.NewInternalError("failed to persist reversal", err)
		}
		if !ok {
			return s.reversalOverlap(p.OrderID)
		}

		s.eventBus.Publish(context.Background(),
			events.NewPaymentReversedEvent(p.OrderID, traceNumber, p.Amount, step))

		return &ConfirmResult{
			OrderID:          p.OrderID,
			Approved:         false,
			PaymentState:     order.StateReversed,
			ResponseCode:     reversedResponseCode,
			Message:          message,
			ReversalExecuted: true,
		}, nil
	}

	// Money may have been captured with no compensating reversal. This is
	// the most severe failure mode in the system: record it for operator
	// intervention and never retry silently.
	message := fmt.Sprintf("Transaction exceeded time limit and automatic reversal failed: %s", outcome.Reason)

	ok, err := s.repo.SetTerminalOutcome(p.OrderID, order.StateReversalFailed, reversedResponseCode, message, raw, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to persist reversal failure", err)
	}
	if !ok {
		return s.reversalOverlap(p.OrderID)
	}

	s.logger.Error("reversal failed, operator intervention required",
		"order_id", p.OrderID,
		"trace_number", traceNumber,
		"reason", outcome.Reason)

	s.eventBus.Publish(context.Background(),
		events.NewReversalFailedEvent(p.OrderID, traceNumber, p.Amount, outcome.Reason))

	return &ConfirmResult{
		OrderID:      p.OrderID,
		Approved:     false,
		PaymentState: order.StateReversalFailed,
		ResponseCode: reversedResponseCode,
		Message:      message,
	}, nil
}

// reversalOverlap handles the narrow race where the record settled between
// the reversal claim and the terminal write: a reversal was issued against
// an authorization another writer resolved in the meantime. The settled
// outcome stands; the record is flagged so an operator reconciles the two
// gateway-side effects.
func (s *StateMachine) reversalOverlap(orderID string) (*ConfirmResult, error) {
	s.logger.Error("record settled while a reversal was in flight, flagging for review",
		"order_id", orderID)

	if _, err := s.repo.MarkNeedsReview(orderID); err != nil {
		s.logger.Error("failed to flag order for review", "order_id", orderID, "error", err)
	}

	s.eventBus.Publish(context.Background(),
		events.NewPaymentNeedsReviewEvent(orderID, "reversal executed against an already settled outcome"))

	return s.reloadResult(orderID)
}

func (s *StateMachine) reloadResult(orderID string) (*ConfirmResult, error) {
	current, err := s.repo.GetByOrderID(orderID)
	if err != nil {
		return nil, errors.NewInternalError("failed to reload order payment", err)
	}
	if current.IsTerminal() {
		return s.resultFromRecord(current), nil
	}
	if current.CurrentStep == order.StepChallenge {
		return s.challengeResult(current)
	}
	return nil, errors.ErrConfirmationInFlight
}

func (s *StateMachine) resultFromRecord(p *order.OrderPayment) *ConfirmResult {
	result := &ConfirmResult{
		OrderID:      p.OrderID,
		Approved:     p.PaymentState == order.StateApproved,
		PaymentState: p.PaymentState,
	}

	if p.ResponseCode != nil {
		result.ResponseCode = *p.ResponseCode
		if gateway.Classify(*p.ResponseCode) == gateway.OutcomePartialApproved {
			result.PartialApproved = true
			if p.ResponseMessage != nil {
				result.PartialNote = *p.ResponseMessage
			}
		}
	}
	if p.ResponseMessage != nil {
		result.Message = *p.ResponseMessage
	}
	result.ReversalExecuted = p.PaymentState == order.StateReversed

	return result
}
