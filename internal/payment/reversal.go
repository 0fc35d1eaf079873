package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/voltmart/payments/internal/gateway"
)

// ReversalOutcome reports the result of a compensating reversal, distinctly
// from the original transaction's outcome.
type ReversalOutcome struct {
	Success bool
	Reason  string
}

type ReversalGatewayAPI interface {
	Reverse(ctx context.Context, req *gateway.ReversalRequest, timeout time.Duration) (*gateway.Response, error)
	MerchantID() string
}

// ReversalService issues compensating reversals for authorizations whose
// outcome is unknown after a timeout. The caller must set the record's
// reversal-attempted flag before invoking Reverse, so a retried surrounding
// process cannot reverse the same authorization twice.
type ReversalService struct {
	gateway ReversalGatewayAPI
	timeout time.Duration
	logger  *slog.Logger
}

func NewReversalService(gw ReversalGatewayAPI, timeout time.Duration, logger *slog.Logger) *ReversalService {
	return &ReversalService{
		gateway: gw,
		timeout: timeout,
		logger:  logger,
	}
}

// Reverse voids the original authorization. originalTraceNumber must be the
// step-1 trace number, never one generated by a later step: it is the field
// the gateway correlates the reversal with the authorization being undone.
//
// A failed reversal is never retried here. A stuck reversal call may itself
// be the cause of gateway-side ambiguity; the failure is reported so an
// operator reviews it.
func (s *ReversalService) Reverse(ctx context.Context, originalTraceNumber string, originalAmount int64, retrievalRef string) ReversalOutcome {
	s.logger.Info("issuing reversal",
		"original_trace_number", originalTraceNumber,
		"original_amount", originalAmount,
		"retrieval_ref", retrievalRef)

	req := &gateway.ReversalRequest{
		OriginalTraceNumber: originalTraceNumber,
		OriginalAmount:      originalAmount,
		RetrievalRefNumber:  retrievalRef,
		MerchantID:          s.gateway.MerchantID(),
	}

	resp, err := s.gateway.Reverse(ctx, req, s.timeout)
	if err != nil {
		s.logger.Error("reversal call failed",
			"original_trace_number", originalTraceNumber,
			"error", err)
		return ReversalOutcome{Success: false, Reason: err.Error()}
	}

	if outcome := gateway.Classify(resp.ResponseCode); outcome != gateway.OutcomeApproved {
		s.logger.Error("gateway rejected reversal",
			"original_trace_number", originalTraceNumber,
			"response_code", resp.ResponseCode)
		return ReversalOutcome{
			Success: false,
			Reason:  "gateway rejected reversal: " + gateway.Message(resp.ResponseCode),
		}
	}

	s.logger.Info("reversal executed",
		"original_trace_number", originalTraceNumber,
		"response_code", resp.ResponseCode)

	return ReversalOutcome{Success: true}
}
