package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/voltmart/payments/internal"
)

// ErrTimeout reports that the gateway did not answer within the caller's
// deadline. It is a first-class outcome, not a generic network failure: the
// gateway may have processed the transaction, so the caller must compensate
// with a reversal.
var ErrTimeout = errors.New("gateway call exceeded deadline")

// ErrUnreachable reports a transport failure below the HTTP layer or a
// malformed response. The gateway's view of the transaction is unknown; the
// caller must NOT reverse, because a reversal referencing a trace number the
// gateway never created risks rejecting a transaction it already declined.
var ErrUnreachable = errors.New("gateway unreachable")

// Client sends the four request shapes to the external card gateway. It
// holds no payment state; every call is a plain request/response with the
// deadline supplied by the caller.
type Client struct {
	baseURL    string
	apiKey     string
	merchantID string
	terminalID string
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	BaseURL    string
	APIKey     string
	MerchantID string
	TerminalID string
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		merchantID: cfg.MerchantID,
		terminalID: cfg.TerminalID,
		// per-call deadlines come from the request context; the transport
		// itself stays unlimited so the caller's timeout is authoritative
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (c *Client) MerchantID() string { return c.merchantID }
func (c *Client) TerminalID() string { return c.terminalID }

// Confirm sends the step-3 authorization-confirmation payload.
func (c *Client) Confirm(ctx context.Context, req *ConfirmRequest, timeout time.Duration) (*Response, error) {
	return c.send(ctx, "/v1/transactions/confirm", req, timeout)
}

// FinalConfirm sends the step-5 final-confirmation payload after a step-up
// challenge completed.
func (c *Client) FinalConfirm(ctx context.Context, req *FinalConfirmRequest, timeout time.Duration) (*Response, error) {
	return c.send(ctx, "/v1/transactions/finalize", req, timeout)
}

// Reverse sends a compensating reversal for the original authorization.
func (c *Client) Reverse(ctx context.Context, req *ReversalRequest, timeout time.Duration) (*Response, error) {
	return c.send(ctx, "/v1/transactions/reverse", req, timeout)
}

// StatusInquiry asks the gateway for its view of a transaction.
func (c *Client) StatusInquiry(ctx context.Context, req *StatusInquiryRequest, timeout time.Duration) (*Response, error) {
	return c.send(ctx, "/v1/transactions/status", req, timeout)
}

func (c *Client) send(ctx context.Context, path string, payload interface{}, timeout time.Duration) (*Response, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	// Once a transaction request is on the wire it must be awaited to its
	// own deadline: the gateway may process it regardless of what the
	// submitting caller does, and the reversal decision needs a definitive
	// timeout, not a dropped connection. Caller cancellation is therefore
	// ignored; only the configured deadline bounds the call.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create gateway request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	c.logger.Info("sending gateway request",
		"url", url,
		"order_id", internal.OrderIDFromContext(ctx),
		"timeout", timeout.String())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			c.logger.Error("gateway call timed out",
				"url", url,
				"elapsed", time.Since(start).String())
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		c.logger.Error("gateway transport failure", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w while reading response", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("gateway returned unexpected status",
			"url", url,
			"status", resp.StatusCode,
			"response", string(respBody))
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var gatewayResp Response
	if err := json.Unmarshal(respBody, &gatewayResp); err != nil {
		c.logger.Error("gateway response malformed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnreachable, err)
	}
	gatewayResp.Raw = respBody

	c.logger.Info("gateway responded",
		"url", url,
		"response_code", gatewayResp.ResponseCode,
		"flow_step", gatewayResp.FlowStep,
		"elapsed", time.Since(start).String())

	return &gatewayResp, nil
}
