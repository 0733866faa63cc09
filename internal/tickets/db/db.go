package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-registration/internal/errs"
	"ms-registration/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ErrTicketExists signals the unique (order_id) constraint fired: another
// writer already issued this order's ticket.
var ErrTicketExists = errors.New("ticket already exists for order")

// CreateTicket inserts a ticket. The unique constraint on order_id is the
// at-most-one-ticket-per-order guard under concurrent duplicate issuance.
func (d *DB) CreateTicket(ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(context.Background())
	if err != nil && isUniqueViolation(err) {
		return ErrTicketExists
	}
	return err
}

func (d *DB) GetTicketByOrder(orderID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByCode(code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("code = ?", code).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Redeem consumes a ticket and records the order check-in as one logical
// transaction. The conditional update on is_used decides the winner of
// concurrent scans; the loser gets false back and reports AlreadyUsed.
func (d *DB) Redeem(ticketID, orderID string, now time.Time) (bool, error) {
	var redeemed bool
	err := d.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("is_used = ?", true).
			Set("used_at = ?", now).
			Where("ticket_id = ?", ticketID).
			Where("is_used = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("is_checked_in = ?", true).
			Set("check_in_time = ?", now).
			Set("updated_at = ?", now).
			Where("order_id = ?", orderID).
			Exec(ctx)
		if err != nil {
			return err
		}
		redeemed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return redeemed, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqliteshim (tests) reports constraint failures as plain text.
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
