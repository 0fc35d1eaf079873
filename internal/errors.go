package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidOrderID   ErrorCode = "INVALID_ORDER_ID"

	ErrCodeOrderPaymentNotFound ErrorCode = "ORDER_PAYMENT_NOT_FOUND"
	ErrCodeOrderPaymentExists   ErrorCode = "ORDER_PAYMENT_EXISTS"
	ErrCodeNotCardPayment       ErrorCode = "NOT_CARD_PAYMENT"
	ErrCodeStepOutOfOrder       ErrorCode = "STEP_OUT_OF_ORDER"
	ErrCodeConfirmationInFlight ErrorCode = "CONFIRMATION_IN_FLIGHT"

	// Timeouts, declines, and reversal failures are not error codes: the
	// state machine converts them into terminal payment states carried in
	// the confirmation result.
	ErrCodeGatewayUnreachable ErrorCode = "GATEWAY_UNREACHABLE"
	ErrCodeInvalidReturnToken ErrorCode = "INVALID_RETURN_TOKEN"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {

			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewExternalError covers failures of the payment gateway itself. The status
// code tells the storefront whether a retry can possibly help.
func NewExternalError(message string, code ErrorCode, statusCode int) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

var (
	ErrOrderPaymentNotFound = NewNotFoundError("order payment not found", ErrCodeOrderPaymentNotFound)
	ErrOrderPaymentExists   = NewConflictError("order payment already exists", ErrCodeOrderPaymentExists)
	ErrNotCardPayment       = NewValidationError("order did not elect card payment", ErrCodeNotCardPayment)
	ErrStepOutOfOrder       = NewConflictError("payment step submitted out of order", ErrCodeStepOutOfOrder)
	ErrConfirmationInFlight = NewConflictError("a confirmation for this order and step is already in flight", ErrCodeConfirmationInFlight)
	ErrInvalidReturnToken   = NewUnauthorizedError("invalid or expired challenge return token", ErrCodeInvalidReturnToken)

	// Transport failed below the HTTP layer: the gateway's view of the
	// transaction is unknown, so no reversal is attempted and the order
	// stays pending for manual reconciliation.
	ErrGatewayUnreachable = NewExternalError(
		"payment gateway unreachable, please try again later",
		ErrCodeGatewayUnreachable,
		http.StatusServiceUnavailable,
	)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
