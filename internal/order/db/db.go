package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-registration/internal/errs"
	"ms-registration/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateOrder inserts a new order.
func (d *DB) CreateOrder(order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(context.Background())
	return err
}

// GetOrderByID fetches one order by its ID.
func (d *DB) GetOrderByID(id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByGatewayRef resolves a gateway order reference to the internal
// order through the mapping table, so duplicate webhook deliveries land on
// the same order.
func (d *DB) GetOrderByGatewayRef(gatewayOrderRef string) (*models.Order, error) {
	var mapping models.GatewayOrder
	err := d.Bun.NewSelect().
		Model(&mapping).
		Where("gateway_order_ref = ?", gatewayOrderRef).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.GetOrderByID(mapping.OrderID)
}

// AttachGatewayOrder records the gateway's order reference on a still-pending
// order and writes the mapping row.
func (d *DB) AttachGatewayOrder(orderID, gatewayOrderRef string, amount int64, currency string) error {
	return d.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("gateway_order_ref = ?", gatewayOrderRef).
			Set("updated_at = ?", time.Now()).
			Where("order_id = ?", orderID).
			Where("status = ?", models.StatusPendingPayment).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errs.ErrInvalidTransition
		}

		mapping := models.GatewayOrder{
			GatewayOrderRef: gatewayOrderRef,
			OrderID:         orderID,
			Amount:          amount,
			Currency:        currency,
			Status:          models.StatusPendingPayment,
			CreatedAt:       time.Now(),
		}
		_, err = tx.NewInsert().Model(&mapping).Exec(ctx)
		return err
	})
}

// MarkPendingVerification moves a pending order to pending_verification.
// Legal only from pending_payment; the conditional where-clause makes a
// repeat call a no-op.
func (d *DB) MarkPendingVerification(orderID, proofRef string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.StatusPendingVerification).
		Set("payment_proof_ref = ?", proofRef).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status = ?", models.StatusPendingPayment).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkPaid flips an order to paid. The conditional update is the exclusivity
// guard: of two concurrent confirmations only one write takes effect, the
// loser sees affected == 0 and treats the call as a duplicate.
func (d *DB) MarkPaid(orderID, gatewayPaymentRef string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.StatusPaid).
		Set("gateway_payment_ref = ?", gatewayPaymentRef).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status IN (?)", bun.In([]string{models.StatusPendingPayment, models.StatusPendingVerification})).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetTicketCode stores the issued ticket code on the order, once.
func (d *DB) SetTicketCode(orderID, code string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("ticket_code = ?", code).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("ticket_code IS NULL").
		Exec(context.Background())
	return err
}

// MarkGatewayOrderPaid updates the mapping row after a verified payment.
func (d *DB) MarkGatewayOrderPaid(gatewayOrderRef string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.GatewayOrder)(nil)).
		Set("status = ?", models.StatusPaid).
		Where("gateway_order_ref = ?", gatewayOrderRef).
		Exec(context.Background())
	return err
}
