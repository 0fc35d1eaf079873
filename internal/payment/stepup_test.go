package payment_test

import (
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/internal/core/datamodel/order"
	"github.com/voltmart/payments/internal/payment"
)

var _ = Describe("StepUpRedirector", func() {
	var (
		redirector *payment.StepUpRedirector
		logger     *slog.Logger
	)

	const secret = "another-32-byte-minimum-signing-key!"

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		redirector = payment.NewStepUpRedirector("https://shop.example.com/payment/return", secret, 30*time.Minute, logger)
	})

	challengedPayment := func() *order.OrderPayment {
		return &order.OrderPayment{
			OrderID:     "order-55",
			CurrentStep: order.StepChallenge,
			StepContext: order.StepContext{
				AccessToken:   "access-1",
				DeviceDataURL: "https://gateway.example.com/device-data",
				ChallengeURL:  "https://gateway.example.com/challenge",
			},
		}
	}

	Describe("BuildChallenge", func() {
		It("should assemble the hand-off from the persisted step context", func() {
			challenge, err := redirector.BuildChallenge(challengedPayment())

			Expect(err).NotTo(HaveOccurred())
			Expect(challenge.AccessToken).To(Equal("access-1"))
			Expect(challenge.DeviceDataURL).To(Equal("https://gateway.example.com/device-data"))
			Expect(challenge.ChallengeURL).To(Equal("https://gateway.example.com/challenge"))
			Expect(challenge.ReturnURL).To(HavePrefix("https://shop.example.com/payment/return?token="))
			Expect(challenge.ReturnToken).NotTo(BeEmpty())
		})

		It("should fail when the step context was never captured", func() {
			p := &order.OrderPayment{OrderID: "order-empty"}

			_, err := redirector.BuildChallenge(p)

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("VerifyReturnToken", func() {
		It("should resolve the order a freshly minted token belongs to", func() {
			challenge, err := redirector.BuildChallenge(challengedPayment())
			Expect(err).NotTo(HaveOccurred())

			orderID, err := redirector.VerifyReturnToken(challenge.ReturnToken)

			Expect(err).NotTo(HaveOccurred())
			Expect(orderID).To(Equal("order-55"))
		})

		It("should reject a token signed with a different secret", func() {
			other := payment.NewStepUpRedirector("https://shop.example.com/payment/return", "a-completely-different-32-byte-key!!", 30*time.Minute, logger)
			challenge, err := other.BuildChallenge(challengedPayment())
			Expect(err).NotTo(HaveOccurred())

			_, err = redirector.VerifyReturnToken(challenge.ReturnToken)

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidReturnToken))
		})

		It("should reject an expired token", func() {
			expired := payment.NewStepUpRedirector("https://shop.example.com/payment/return", secret, -time.Minute, logger)
			challenge, err := expired.BuildChallenge(challengedPayment())
			Expect(err).NotTo(HaveOccurred())

			_, err = redirector.VerifyReturnToken(challenge.ReturnToken)

			Expect(err).To(HaveOccurred())
		})

		It("should reject garbage", func() {
			_, err := redirector.VerifyReturnToken("not-a-token")

			Expect(err).To(HaveOccurred())
		})
	})
})
