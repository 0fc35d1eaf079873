package gateway_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltmart/payments/internal/gateway"
)

var _ = Describe("Client", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	})

	newClient := func(baseURL string) *gateway.Client {
		return gateway.NewClient(gateway.Config{
			BaseURL:    baseURL,
			APIKey:     "test-key",
			MerchantID: "merchant-1",
			TerminalID: "terminal-1",
		}, logger)
	}

	confirmReq := &gateway.ConfirmRequest{
		TraceNumber: "000123",
		ReferenceID: "ref-1",
		MessageType: "0200",
		MerchantID:  "merchant-1",
	}

	Context("when the gateway responds normally", func() {
		It("should parse the typed response and preserve the raw payload", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/transactions/confirm"))
				Expect(r.Header.Get("X-Api-Key")).To(Equal("test-key"))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"response_code":"00","response_message":"Approved","retrieval_ref_number":"RRN123","extra_field":"kept in raw"}`))
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Confirm(context.Background(), confirmReq, 5*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ResponseCode).To(Equal("00"))
			Expect(resp.RetrievalRefNumber).To(Equal("RRN123"))
			Expect(string(resp.Raw)).To(ContainSubstring("extra_field"))
		})

		It("should surface a step-up hand-off", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"response_code":"00","flow_step":"CHALLENGE","ds_transaction_id":"ds-1","access_token":"tok","device_data_url":"https://dd","challenge_url":"https://ch"}`))
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Confirm(context.Background(), confirmReq, 5*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.RequiresStepUp()).To(BeTrue())
			Expect(resp.DSTransactionID).To(Equal("ds-1"))
		})
	})

	Context("when the gateway exceeds the deadline", func() {
		It("should return ErrTimeout", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
				w.Write([]byte(`{"response_code":"00"}`))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Confirm(context.Background(), confirmReq, 50*time.Millisecond)

			Expect(err).To(MatchError(gateway.ErrTimeout))
		})
	})

	Context("when the caller disconnects mid-call", func() {
		It("should await its own deadline and report a timeout, not a transport failure", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(400 * time.Millisecond)
				w.Write([]byte(`{"response_code":"00"}`))
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()

			start := time.Now()
			_, err := newClient(server.URL).Confirm(ctx, confirmReq, 150*time.Millisecond)

			Expect(err).To(MatchError(gateway.ErrTimeout))
			Expect(time.Since(start)).To(BeNumerically(">=", 150*time.Millisecond))
		})

		It("should still deliver a response arriving before the deadline", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(50 * time.Millisecond)
				w.Write([]byte(`{"response_code":"00"}`))
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			resp, err := newClient(server.URL).Confirm(ctx, confirmReq, 2*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ResponseCode).To(Equal("00"))
		})
	})

	Context("when the gateway cannot be reached", func() {
		It("should return ErrUnreachable for a refused connection", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			server.Close()

			_, err := newClient(server.URL).Confirm(context.Background(), confirmReq, 5*time.Second)

			Expect(err).To(MatchError(gateway.ErrUnreachable))
		})

		It("should return ErrUnreachable for a non-200 status", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			_, err := newClient(server.URL).Confirm(context.Background(), confirmReq, 5*time.Second)

			Expect(err).To(MatchError(gateway.ErrUnreachable))
		})

		It("should return ErrUnreachable for a malformed body", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Confirm(context.Background(), confirmReq, 5*time.Second)

			Expect(err).To(MatchError(gateway.ErrUnreachable))
		})
	})

	Context("reversal calls", func() {
		It("should post to the reversal path", func() {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Write([]byte(`{"response_code":"00"}`))
			}))
			defer server.Close()

			resp, err := newClient(server.URL).Reverse(context.Background(), &gateway.ReversalRequest{
				OriginalTraceNumber: "000123",
				OriginalAmount:      50000,
				MerchantID:          "merchant-1",
			}, 5*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(gotPath).To(Equal("/v1/transactions/reverse"))
			Expect(resp.ResponseCode).To(Equal("00"))
		})
	})
})
