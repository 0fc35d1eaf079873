package gateway

import "encoding/json"

// Field names in these payloads are gateway-defined and preserved verbatim
// across steps; the confirmation payload for step 5 is a strict superset of
// the step-3 payload.

// ConfirmRequest is the step-3 authorization-confirmation payload. The trace
// number and reference identifier originate from the step-1 authorization
// submitted by the storefront checkout.
type ConfirmRequest struct {
	TraceNumber      string `json:"trace_number"`
	ReferenceID      string `json:"reference_id"`
	MessageType      string `json:"message_type"`
	ProcessingCode   string `json:"processing_code"`
	POSEntryMode     string `json:"pos_entry_mode"`
	NetworkID        string `json:"network_id"`
	POSConditionCode string `json:"pos_condition_code"`
	OrderInfo        string `json:"order_info"`
	AdditionalData   string `json:"additional_data"`
	MerchantID       string `json:"merchant_id"`
	TerminalID       string `json:"terminal_id,omitempty"`
}

// FinalConfirmRequest is the step-5 payload sent after a step-up challenge
// completed. It carries everything step 3 carried plus the directory-server
// transaction identifier the gateway echoed back during step 3.
type FinalConfirmRequest struct {
	ConfirmRequest
	DSTransactionID string `json:"ds_transaction_id,omitempty"`
}

// ReversalRequest voids an authorization whose outcome is unknown to the
// merchant. The trace number must be the original transaction's: it is the
// only field the gateway uses to correlate the reversal with the
// authorization being undone.
type ReversalRequest struct {
	OriginalTraceNumber string `json:"original_trace_number"`
	OriginalAmount      int64  `json:"original_amount"`
	RetrievalRefNumber  string `json:"retrieval_ref_number,omitempty"`
	MerchantID          string `json:"merchant_id"`
}

// StatusInquiryRequest asks the gateway for its view of a transaction,
// used by the reconciliation sweep for orders stuck pending.
type StatusInquiryRequest struct {
	TraceNumber string `json:"trace_number"`
	ReferenceID string `json:"reference_id"`
	MerchantID  string `json:"merchant_id"`
}

// Response is the typed view of a gateway reply. Unknown or extra fields are
// preserved verbatim in Raw for audit but are not relied upon structurally.
type Response struct {
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`

	// Flow control: when this equals FlowStepChallenge the cardholder must
	// complete a step-up challenge before final confirmation.
	FlowStep string `json:"flow_step,omitempty"`

	DSTransactionID string `json:"ds_transaction_id,omitempty"`
	AccessToken     string `json:"access_token,omitempty"`
	DeviceDataURL   string `json:"device_data_url,omitempty"`
	ChallengeURL    string `json:"challenge_url,omitempty"`

	RetrievalRefNumber string `json:"retrieval_ref_number,omitempty"`
	AuthIdentifier     string `json:"auth_identifier,omitempty"`

	// Local transaction timestamp as two separate gateway strings:
	// MMDD and HHMMSS. The year is not transmitted.
	TransactionDate string `json:"transaction_date,omitempty"`
	TransactionTime string `json:"transaction_time,omitempty"`

	OperationType string `json:"operation_type,omitempty"`

	// Free-text note accompanying a partial authorization.
	PartialAmountNote string `json:"partial_amount_note,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// FlowStepChallenge is the sentinel the gateway places in flow_step when a
// 3-D Secure step-up is required.
const FlowStepChallenge = "CHALLENGE"

// RequiresStepUp reports whether the gateway demands a step-up challenge
// before the transaction can be finalized.
func (r *Response) RequiresStepUp() bool {
	return r.FlowStep == FlowStepChallenge
}
