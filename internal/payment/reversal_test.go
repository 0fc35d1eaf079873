package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltmart/payments/internal/gateway"
	"github.com/voltmart/payments/internal/payment"
)

type mockReversalGateway struct {
	resp    *gateway.Response
	err     error
	calls   int
	lastReq *gateway.ReversalRequest
}

func (m *mockReversalGateway) Reverse(ctx context.Context, req *gateway.ReversalRequest, timeout time.Duration) (*gateway.Response, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockReversalGateway) MerchantID() string { return "merchant-1" }

var _ = Describe("ReversalService", func() {
	var (
		service *payment.ReversalService
		mockGW  *mockReversalGateway
	)

	BeforeEach(func() {
		mockGW = &mockReversalGateway{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = payment.NewReversalService(mockGW, time.Second, logger)
	})

	Context("when the gateway approves the reversal", func() {
		It("should succeed and send the original transaction fields", func() {
			mockGW.resp = &gateway.Response{ResponseCode: "00"}

			outcome := service.Reverse(context.Background(), "000123", 250000, "RRN123")

			Expect(outcome.Success).To(BeTrue())
			Expect(mockGW.lastReq.OriginalTraceNumber).To(Equal("000123"))
			Expect(mockGW.lastReq.OriginalAmount).To(Equal(int64(250000)))
			Expect(mockGW.lastReq.RetrievalRefNumber).To(Equal("RRN123"))
			Expect(mockGW.lastReq.MerchantID).To(Equal("merchant-1"))
		})
	})

	Context("when the gateway rejects the reversal", func() {
		It("should fail with the gateway's reason and never retry", func() {
			mockGW.resp = &gateway.Response{ResponseCode: "12"}

			outcome := service.Reverse(context.Background(), "000123", 250000, "")

			Expect(outcome.Success).To(BeFalse())
			Expect(outcome.Reason).To(ContainSubstring("Invalid transaction"))
			Expect(mockGW.calls).To(Equal(1))
		})
	})

	Context("when the reversal call itself fails", func() {
		It("should fail with the transport error and never retry", func() {
			mockGW.err = errors.New("connection reset")

			outcome := service.Reverse(context.Background(), "000123", 250000, "")

			Expect(outcome.Success).To(BeFalse())
			Expect(outcome.Reason).To(ContainSubstring("connection reset"))
			Expect(mockGW.calls).To(Equal(1))
		})

		It("should treat a timed-out reversal as failed rather than retrying", func() {
			mockGW.err = gateway.ErrTimeout

			outcome := service.Reverse(context.Background(), "000123", 250000, "")

			Expect(outcome.Success).To(BeFalse())
			Expect(mockGW.calls).To(Equal(1))
		})
	})
})
