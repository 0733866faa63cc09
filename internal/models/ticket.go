package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is a single-use redemption token bound 1:1 to a paid Order.
// Created only by the issuer, mutated only by the scanner, never deleted.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID string `bun:"ticket_id,pk" json:"ticket_id"`
	OrderID  string `bun:"order_id,unique" json:"order_id"`
	Code     string `bun:"code,unique" json:"code"`
	QRCode   []byte `bun:"qr_code" json:"qr_code,omitempty"`

	IsUsed bool       `bun:"is_used" json:"is_used"`
	UsedAt *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`

	IssuedAt time.Time `bun:"issued_at" json:"issued_at"`
}
