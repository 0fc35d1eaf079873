package payment_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltmart/payments/internal/core/datamodel/order"
	"github.com/voltmart/payments/internal/core/events"
	"github.com/voltmart/payments/internal/gateway"
	"github.com/voltmart/payments/internal/payment"
)

var _ = Describe("Handler", func() {
	var (
		router   *chi.Mux
		mockRepo *mockRepository
		mockGW   *mockGateway
	)

	const orderID = "order-200"

	BeforeEach(func() {
		mockRepo = newMockRepository()
		mockGW = &mockGateway{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		stepUp := payment.NewStepUpRedirector("https://shop.example.com/payment/return", "test-secret-at-least-32-bytes-long!!", 30*time.Minute, logger)
		stateMachine := payment.NewStateMachine(
			mockRepo,
			mockGW,
			&mockReversals{outcome: payment.ReversalOutcome{Success: true}},
			payment.NewMemoryGuard(),
			stepUp,
			events.NewEventBus(logger),
			time.Second,
			logger,
		)
		handler := payment.NewHandler(stateMachine, stepUp, logger)

		router = chi.NewRouter()
		router.Post("/api/v1/payments", handler.CreatePayment)
		router.Get("/api/v1/payments/attention", handler.ListAttention)
		router.Post("/api/v1/payments/stepup/return", handler.StepUpReturn)
		router.Get("/api/v1/payments/{orderID}", handler.GetPayment)
		router.Post("/api/v1/payments/{orderID}/confirm", handler.ConfirmPayment)
		router.Post("/api/v1/payments/{orderID}/finalize", handler.FinalizePayment)
	})

	doJSON := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	createPayment := func() {
		rec := doJSON(http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"order_id":       orderID,
			"payment_method": order.MethodCard,
			"amount":         250000,
			"trace_number":   "000123",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
	}

	Describe("POST /payments", func() {
		It("should create a pending record", func() {
			createPayment()

			var created order.OrderPayment
			Expect(json.Unmarshal(doJSON(http.MethodGet, "/api/v1/payments/"+orderID, nil).Body.Bytes(), &created)).To(Succeed())
			Expect(created.PaymentState).To(Equal(order.StatePending))
		})

		It("should return 409 for a duplicate order", func() {
			createPayment()

			rec := doJSON(http.MethodPost, "/api/v1/payments", map[string]interface{}{
				"order_id":       orderID,
				"payment_method": order.MethodCard,
				"amount":         250000,
			})

			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("should return 400 for a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString("not json"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 400 for a missing amount", func() {
			rec := doJSON(http.MethodPost, "/api/v1/payments", map[string]interface{}{
				"order_id":       orderID,
				"payment_method": order.MethodCard,
			})

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /payments/{orderID}/confirm", func() {
		BeforeEach(createPayment)

		It("should return the approval outcome", func() {
			mockGW.confirmResp = &gateway.Response{ResponseCode: "00"}

			rec := doJSON(http.MethodPost, "/api/v1/payments/"+orderID+"/confirm", map[string]interface{}{
				"reference_id": "ref-abc",
			})

			Expect(rec.Code).To(Equal(http.StatusOK))
			var result payment.ConfirmResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Approved).To(BeTrue())
			Expect(result.PaymentState).To(Equal(order.StateApproved))
		})

		It("should return 404 for an unknown order", func() {
			rec := doJSON(http.MethodPost, "/api/v1/payments/order-missing/confirm", map[string]interface{}{
				"reference_id": "ref-abc",
			})

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should return 400 when the reference id is missing", func() {
			rec := doJSON(http.MethodPost, "/api/v1/payments/"+orderID+"/confirm", map[string]interface{}{})

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should surface a gateway outage without settling the payment", func() {
			mockGW.confirmErr = gateway.ErrUnreachable

			rec := doJSON(http.MethodPost, "/api/v1/payments/"+orderID+"/confirm", map[string]interface{}{
				"reference_id": "ref-abc",
			})

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(mockRepo.get(orderID).PaymentState).To(Equal(order.StatePending))
		})
	})

	Describe("step-up return leg", func() {
		var returnToken string

		BeforeEach(func() {
			createPayment()
			mockGW.confirmResp = &gateway.Response{
				ResponseCode:    "00",
				FlowStep:        gateway.FlowStepChallenge,
				DSTransactionID: "ds-1",
				AccessToken:     "tok",
				DeviceDataURL:   "https://dd",
				ChallengeURL:    "https://ch",
			}

			rec := doJSON(http.MethodPost, "/api/v1/payments/"+orderID+"/confirm", map[string]interface{}{
				"reference_id": "ref-abc",
			})
			Expect(rec.Code).To(Equal(http.StatusOK))

			var result payment.ConfirmResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.RequiresStepUp).To(BeTrue())
			returnToken = result.ReturnToken
		})

		It("should finalize the bound order when the token is valid", func() {
			mockGW.finalResp = &gateway.Response{ResponseCode: "00"}

			rec := doJSON(http.MethodPost, "/api/v1/payments/stepup/return?token="+returnToken, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var result payment.ConfirmResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Approved).To(BeTrue())
			Expect(result.OrderID).To(Equal(orderID))
		})

		It("should reject a forged token", func() {
			rec := doJSON(http.MethodPost, "/api/v1/payments/stepup/return?token=forged", nil)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should require a token", func() {
			rec := doJSON(http.MethodPost, "/api/v1/payments/stepup/return", nil)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /payments/{orderID}", func() {
		It("should return 404 for an unknown order", func() {
			rec := doJSON(http.MethodGet, "/api/v1/payments/order-missing", nil)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /payments/attention", func() {
		It("should list records needing intervention", func() {
			createPayment()
			_, err := mockRepo.MarkNeedsReview(orderID)
			Expect(err).NotTo(HaveOccurred())

			rec := doJSON(http.MethodGet, "/api/v1/payments/attention", nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body struct {
				Count   int                  `json:"count"`
				Records []order.OrderPayment `json:"records"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Count).To(Equal(1))
			Expect(body.Records[0].OrderID).To(Equal(orderID))
		})
	})
})
