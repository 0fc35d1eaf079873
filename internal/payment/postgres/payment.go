package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/voltmart/payments/internal/core/datamodel/order"
	paymentpkg "github.com/voltmart/payments/internal/payment"
)

type OrderPaymentRepository struct {
	db *gorm.DB
}

func NewOrderPaymentRepository(db *gorm.DB) paymentpkg.Repository {
	return &OrderPaymentRepository{
		db: db,
	}
}

func (r *OrderPaymentRepository) Create(p *order.OrderPayment) error {
	err := r.db.Create(p).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return paymentpkg.ErrDuplicateOrderPayment
	}
	return err
}

func (r *OrderPaymentRepository) GetByOrderID(orderID string) (*order.OrderPayment, error) {
	var p order.OrderPayment
	err := r.db.Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveStepContext persists caller-supplied reference data absorbed into the
// step context ahead of a gateway call, so a call that ends without a
// verdict still leaves the trace number behind for the reconcile sweep.
func (r *OrderPaymentRepository) SaveStepContext(orderID string, stepCtx order.StepContext) (bool, error) {
	res := r.db.Model(&order.OrderPayment{}).
		Where("order_id = ? AND payment_state = ?", orderID, order.StatePending).
		Updates(map[string]interface{}{
			"step_context": stepCtx,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdvanceToChallenge moves a pending record from the confirmation step into
// the challenge step. The WHERE clause doubles as the mutual-exclusion
// guarantee: zero rows affected means another writer advanced the record
// first.
func (r *OrderPaymentRepository) AdvanceToChallenge(orderID string, stepCtx order.StepContext, raw []byte, code, message string) (bool, error) {
	updates := map[string]interface{}{
		"current_step":     order.StepChallenge,
		"step_context":     stepCtx,
		"response_code":    code,
		"response_message": message,
		"updated_at":       time.Now(),
	}
	if raw != nil {
		updates["raw_gateway_payload"] = raw
	}

	res := r.db.Model(&order.OrderPayment{}).
		Where("order_id = ? AND payment_state = ? AND current_step = ?",
			orderID, order.StatePending, order.StepConfirm).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetTerminalOutcome transitions a pending record to its one terminal
// state. Terminal states are monotonic: the pending-only condition means a
// record can never leave a terminal state or switch between terminal
// states. A nil raw keeps the previously stored gateway payload (a
// transport timeout produced no new one).
func (r *OrderPaymentRepository) SetTerminalOutcome(orderID, state, code, message string, raw []byte, settlement *order.SettlementFields) (bool, error) {
	updates := map[string]interface{}{
		"payment_state":    state,
		"response_code":    code,
		"response_message": message,
		"processed_at":     time.Now(),
		"updated_at":       time.Now(),
	}
	if raw != nil {
		updates["raw_gateway_payload"] = raw
	}
	if settlement != nil {
		updates["settlement"] = *settlement
	}

	res := r.db.Model(&order.OrderPayment{}).
		Where("order_id = ? AND payment_state = ?", orderID, order.StatePending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimReversal flips the reversal-attempted flag exactly once, and only
// while the record is still pending. The conditional update is what makes
// duplicate reversal impossible across concurrent retries of the timeout
// path; the pending condition keeps a late timeout from voiding an
// authorization another writer already settled.
func (r *OrderPaymentRepository) ClaimReversal(orderID string) (bool, error) {
	res := r.db.Model(&order.OrderPayment{}).
		Where("order_id = ? AND payment_state = ? AND reversal_attempted = ?", orderID, order.StatePending, false).
		Updates(map[string]interface{}{
			"reversal_attempted": true,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderPaymentRepository) MarkNeedsReview(orderID string) (bool, error) {
	res := r.db.Model(&order.OrderPayment{}).
		Where("order_id = ? AND needs_review = ?", orderID, false).
		Updates(map[string]interface{}{
			"needs_review": true,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStalePending feeds the reconciliation sweep: card orders still
// pending past the staleness window, oldest first.
func (r *OrderPaymentRepository) ListStalePending(before time.Time, limit int) ([]*order.OrderPayment, error) {
	var payments []*order.OrderPayment
	err := r.db.
		Where("payment_state = ? AND payment_method = ? AND needs_review = ? AND updated_at < ?",
			order.StatePending, order.MethodCard, false, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// ListAttention returns the records operations must look at: failed
// reversals first, then sweep-flagged pending orders.
func (r *OrderPaymentRepository) ListAttention(limit int) ([]*order.OrderPayment, error) {
	var payments []*order.OrderPayment
	err := r.db.
		Where("payment_state = ? OR needs_review = ?", order.StateReversalFailed, true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
