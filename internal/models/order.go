package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses. Transitions are monotonic:
// pending_payment -> paid, or pending_payment -> pending_verification -> paid.
const (
	StatusPendingPayment      = "pending_payment"
	StatusPendingVerification = "pending_verification"
	StatusPaid                = "paid"
)

// Payment methods.
const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodUPI      = "upi"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID    string `bun:"order_id,pk" json:"order_id"`
	FullName   string `bun:"full_name" json:"full_name"`
	Email      string `bun:"email" json:"email"`
	Phone      string `bun:"phone" json:"phone"`
	Speciality string `bun:"speciality" json:"speciality"`
	Hospital   string `bun:"hospital" json:"hospital"`
	City       string `bun:"city" json:"city"`
	Notes      string `bun:"notes" json:"notes,omitempty"`

	TierLabel   string `bun:"tier_label" json:"tier_label"`
	BaseAmount  int64  `bun:"base_amount" json:"base_amount"`
	TaxAmount   int64  `bun:"tax_amount" json:"tax_amount"`
	TotalAmount int64  `bun:"total_amount" json:"total_amount"`
	Currency    string `bun:"currency" json:"currency"`

	Status        string `bun:"status" json:"status"`
	PaymentMethod string `bun:"payment_method" json:"payment_method"`

	GatewayOrderRef   string `bun:"gateway_order_ref,nullzero" json:"gateway_order_ref,omitempty"`
	GatewayPaymentRef string `bun:"gateway_payment_ref,nullzero" json:"gateway_payment_ref,omitempty"`
	PaymentProofRef   string `bun:"payment_proof_ref,nullzero" json:"payment_proof_ref,omitempty"`

	TicketCode  string     `bun:"ticket_code,nullzero" json:"ticket_code,omitempty"`
	IsCheckedIn bool       `bun:"is_checked_in" json:"is_checked_in"`
	CheckInTime *time.Time `bun:"check_in_time,nullzero" json:"check_in_time,omitempty"`

	CreatedAt time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at" json:"updated_at"`
}

// GatewayOrder maps an external gateway order id to an internal order so
// duplicate webhook deliveries resolve to the same Order.
type GatewayOrder struct {
	bun.BaseModel `bun:"table:gateway_orders"`

	GatewayOrderRef string    `bun:"gateway_order_ref,pk" json:"gateway_order_ref"`
	OrderID         string    `bun:"order_id" json:"order_id"`
	Amount          int64     `bun:"amount" json:"amount"`
	Currency        string    `bun:"currency" json:"currency"`
	Status          string    `bun:"status" json:"status"`
	CreatedAt       time.Time `bun:"created_at" json:"created_at"`
}
