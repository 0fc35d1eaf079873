package payment

import (
	"regexp"

	errors "github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/internal/core/common/validation"
	"github.com/voltmart/payments/internal/core/datamodel/order"
)

// Order identifiers travel verbatim into gateway payload fields, so the
// shape is constrained here instead of relying on the gateway to notice.
var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

func validateOrderID(orderID string) error {
	if orderID != "" && !orderIDPattern.MatchString(orderID) {
		return errors.NewValidationError(
			"order_id must be 1-64 characters of letters, digits, dots, underscores, or dashes",
			errors.ErrCodeInvalidOrderID,
		)
	}
	return nil
}

// CreatePaymentRequest opens the payment record when an order elects a
// payment method at checkout.
type CreatePaymentRequest struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	Amount        int64  `json:"amount"`
	// Step-1 authorization context handed over by the checkout flow.
	TraceNumber      string `json:"trace_number,omitempty"`
	ProcessingCode   string `json:"processing_code,omitempty"`
	POSEntryMode     string `json:"pos_entry_mode,omitempty"`
	NetworkID        string `json:"network_id,omitempty"`
	POSConditionCode string `json:"pos_condition_code,omitempty"`
	OrderInfo        string `json:"order_info,omitempty"`
	AdditionalData   string `json:"additional_data,omitempty"`
}

func (r *CreatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", r.OrderID).Required()
	validator.Field("payment_method", r.PaymentMethod).Required().
		OneOf([]string{order.MethodCard, order.MethodBankTransfer, order.MethodCashOnDelivery}, errors.ErrCodeValidationFailed)
	validator.Field("amount", r.Amount).Required().MinInt(1, errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return validateOrderID(r.OrderID)
}

// ConfirmRequest drives the step-3 authorization confirmation.
type ConfirmRequest struct {
	OrderID     string `json:"order_id"`
	ReferenceID string `json:"reference_id"`
	TraceNumber string `json:"trace_number,omitempty"`
}

func (r *ConfirmRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", r.OrderID).Required()
	validator.Field("reference_id", r.ReferenceID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return validateOrderID(r.OrderID)
}

// FinalizeRequest drives the step-5 final confirmation after the step-up
// challenge round trip returned control to the application. ReferenceID is
// optional: when absent, the reference captured during step 3 is reused.
type FinalizeRequest struct {
	OrderID     string `json:"order_id"`
	ReferenceID string `json:"reference_id,omitempty"`
}

func (r *FinalizeRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", r.OrderID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ConfirmResult is what the storefront UI receives back from either
// confirmation step. Failure always carries the gateway response code when
// one exists and whether a reversal was executed, so support staff can
// triage without re-querying the gateway.
type ConfirmResult struct {
	OrderID      string `json:"order_id"`
	Approved     bool   `json:"approved"`
	PaymentState string `json:"payment_state"`
	ResponseCode string `json:"response_code,omitempty"`
	Message      string `json:"message"`

	PartialApproved bool   `json:"partial_approved,omitempty"`
	PartialNote     string `json:"partial_note,omitempty"`

	ReversalExecuted bool `json:"reversal_executed,omitempty"`

	RequiresStepUp bool   `json:"requires_step_up,omitempty"`
	AccessToken    string `json:"access_token,omitempty"`
	DeviceDataURL  string `json:"device_data_url,omitempty"`
	ChallengeURL   string `json:"challenge_url,omitempty"`
	ReturnToken    string `json:"return_token,omitempty"`
}
