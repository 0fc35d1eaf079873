package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Payment method elected on the order. The authorization engine only acts on
// card payments; bank transfer and cash on delivery are settled elsewhere.
const (
	MethodCard           = "card"
	MethodBankTransfer   = "bank_transfer"
	MethodCashOnDelivery = "cash_on_delivery"
)

// Payment states. Pending transitions to exactly one terminal state;
// reversed and reversal_failed are as terminal as approved and declined.
const (
	StatePending        = "pending"
	StateApproved       = "approved"
	StateDeclined       = "declined"
	StateReversed       = "reversed"
	StateReversalFailed = "reversal_failed"
)

// Protocol steps. Step 1 (initial authorization) is submitted by the
// storefront checkout before this record reaches the engine.
const (
	StepConfirm      = "step3_confirm"
	StepChallenge    = "step4_challenge"
	StepFinalConfirm = "step5_final_confirm"
)

func IsTerminalState(state string) bool {
	switch state {
	case StateApproved, StateDeclined, StateReversed, StateReversalFailed:
		return true
	}
	return false
}

// StepContext accumulates the fields later protocol steps need from earlier
// ones. Fields are add-only: once set by a step they are never altered, so
// the payload sent on step N is a strict superset of what step 1 declared.
type StepContext struct {
	TraceNumber      string `json:"trace_number,omitempty"`
	ReferenceID      string `json:"reference_id,omitempty"`
	ProcessingCode   string `json:"processing_code,omitempty"`
	POSEntryMode     string `json:"pos_entry_mode,omitempty"`
	NetworkID        string `json:"network_id,omitempty"`
	POSConditionCode string `json:"pos_condition_code,omitempty"`
	OrderInfo        string `json:"order_info,omitempty"`
	AdditionalData   string `json:"additional_data,omitempty"`

	// Captured during the step-3 response when the gateway demands a
	// step-up challenge. Authoritative for step 5 once present.
	DSTransactionID string `json:"ds_transaction_id,omitempty"`
	AccessToken     string `json:"access_token,omitempty"`
	DeviceDataURL   string `json:"device_data_url,omitempty"`
	ChallengeURL    string `json:"challenge_url,omitempty"`
}

// Absorb copies non-empty fields from other into c without overwriting
// anything already set.
func (c *StepContext) Absorb(other StepContext) {
	setIfEmpty(&c.TraceNumber, other.TraceNumber)
	setIfEmpty(&c.ReferenceID, other.ReferenceID)
	setIfEmpty(&c.ProcessingCode, other.ProcessingCode)
	setIfEmpty(&c.POSEntryMode, other.POSEntryMode)
	setIfEmpty(&c.NetworkID, other.NetworkID)
	setIfEmpty(&c.POSConditionCode, other.POSConditionCode)
	setIfEmpty(&c.OrderInfo, other.OrderInfo)
	setIfEmpty(&c.AdditionalData, other.AdditionalData)
	setIfEmpty(&c.DSTransactionID, other.DSTransactionID)
	setIfEmpty(&c.AccessToken, other.AccessToken)
	setIfEmpty(&c.DeviceDataURL, other.DeviceDataURL)
	setIfEmpty(&c.ChallengeURL, other.ChallengeURL)
}

func setIfEmpty(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func (c StepContext) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *StepContext) Scan(value interface{}) error {
	if value == nil {
		*c = StepContext{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	}
	return fmt.Errorf("unsupported step context column type %T", value)
}

// SettlementFields are the tracing identifiers the gateway returns on
// approval, needed for voucher reconstruction and any later reversal. Fields
// never regress to empty once set: the final-confirmation response may omit
// values the confirmation response already supplied.
type SettlementFields struct {
	RetrievalRefNumber string     `json:"retrieval_ref_number,omitempty"`
	AuthIdentifier     string     `json:"auth_identifier,omitempty"`
	TransactionAt      *time.Time `json:"transaction_at,omitempty"`
	// Set when the transaction year had to be assumed across a year
	// boundary; operations should verify against the gateway statement.
	YearAmbiguous bool   `json:"year_ambiguous,omitempty"`
	OperationType string `json:"operation_type,omitempty"`
}

// Absorb fills in fields from other, keeping existing values when the
// incoming ones are empty.
func (s *SettlementFields) Absorb(other SettlementFields) {
	setIfEmpty(&s.RetrievalRefNumber, other.RetrievalRefNumber)
	setIfEmpty(&s.AuthIdentifier, other.AuthIdentifier)
	setIfEmpty(&s.OperationType, other.OperationType)
	if other.TransactionAt != nil {
		s.TransactionAt = other.TransactionAt
		s.YearAmbiguous = other.YearAmbiguous
	}
}

func (s SettlementFields) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SettlementFields) Scan(value interface{}) error {
	if value == nil {
		*s = SettlementFields{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("unsupported settlement column type %T", value)
}

// OrderPayment is the durable payment state for one order. It is created
// pending when the order elects card payment, advanced exclusively by the
// payment state machine, and never deleted: it is permanent audit state and
// the source for voucher generation.
type OrderPayment struct {
	ID            int64  `json:"id" gorm:"primaryKey"`
	OrderID       string `json:"order_id" gorm:"column:order_id;not null;uniqueIndex"`
	PaymentMethod string `json:"payment_method" gorm:"column:payment_method;not null"`
	Amount        int64  `json:"amount" gorm:"column:amount;not null"`
	PaymentState  string `json:"payment_state" gorm:"column:payment_state;default:pending"`
	CurrentStep   string `json:"current_step" gorm:"column:current_step;default:step3_confirm"`

	ResponseCode    *string `json:"response_code,omitempty" gorm:"column:response_code"`
	ResponseMessage *string `json:"response_message,omitempty" gorm:"column:response_message"`

	// Last full gateway response, verbatim, for audit and voucher
	// reconstruction. Replaced whole on every gateway interaction.
	RawGatewayPayload json.RawMessage `json:"raw_gateway_payload,omitempty" gorm:"column:raw_gateway_payload;type:jsonb"`

	StepContext StepContext      `json:"step_context" gorm:"column:step_context;type:jsonb"`
	Settlement  SettlementFields `json:"settlement" gorm:"column:settlement;type:jsonb"`

	// Set true before the first reversal call; keeps a retried timeout
	// path from reversing the same authorization twice.
	ReversalAttempted bool `json:"reversal_attempted" gorm:"column:reversal_attempted;default:false"`

	// Set by the reconciliation sweep when the gateway cannot account for
	// a stale pending order; surfaces the record to operations tooling.
	NeedsReview bool `json:"needs_review" gorm:"column:needs_review;default:false"`

	ProcessedAt *time.Time `json:"processed_at,omitempty" gorm:"column:processed_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (OrderPayment) TableName() string {
	return "order_payments"
}

func (p *OrderPayment) IsTerminal() bool {
	return IsTerminalState(p.PaymentState)
}

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

func ValidateMethod(method string) error {
	switch method {
	case MethodCard, MethodBankTransfer, MethodCashOnDelivery:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, method)
}
