package models

import "time"

// CustomerDetails carries the registration form fields. Nothing in here is
// ever trusted for pricing.
type CustomerDetails struct {
	FullName   string `json:"full_name" validate:"required,min=2"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,inmobile"`
	Speciality string `json:"speciality" validate:"required"`
	Hospital   string `json:"hospital" validate:"required"`
	City       string `json:"city" validate:"required"`
	Notes      string `json:"notes"`
}

// CreateOrderRequest opens a gateway-hosted order. The tier label is
// re-resolved server-side; the client's displayed amount is advisory only.
type CreateOrderRequest struct {
	TierLabel string          `json:"tier_label"`
	Currency  string          `json:"currency"`
	Customer  CustomerDetails `json:"customer"`
}

type CreateOrderResponse struct {
	OrderID         string `json:"order_id"`
	GatewayOrderRef string `json:"gateway_order_ref"`
	GatewayKeyID    string `json:"gateway_key_id"`
	TierLabel       string `json:"tier_label"`
	BaseAmount      int64  `json:"base_amount"`
	TaxAmount       int64  `json:"tax_amount"`
	TotalAmount     int64  `json:"total_amount"`
	Currency        string `json:"currency"`
}

// ConfirmPaymentRequest carries the gateway checkout result. The signature is
// the only thing that proves the payment is genuine.
type ConfirmPaymentRequest struct {
	GatewayOrderRef   string `json:"gateway_order_ref"`
	GatewayPaymentRef string `json:"gateway_payment_ref"`
	Signature         string `json:"signature"`
}

type ConfirmPaymentResponse struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	TicketCode string `json:"ticket_code"`
}

// PaymentInstructions is returned for the manual (UPI / bank transfer) path.
type PaymentInstructions struct {
	UPIID       string      `json:"upi_id"`
	UPIURI      string      `json:"upi_uri"`
	UPIQRCode   []byte      `json:"upi_qr_code,omitempty"`
	BankDetails BankDetails `json:"bank_details"`
}

type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
}

type ManualOrderResponse struct {
	OrderID             string              `json:"order_id"`
	TierLabel           string              `json:"tier_label"`
	BaseAmount          int64               `json:"base_amount"`
	TaxAmount           int64               `json:"tax_amount"`
	TotalAmount         int64               `json:"total_amount"`
	Currency            string              `json:"currency"`
	PaymentInstructions PaymentInstructions `json:"payment_instructions"`
}

// AttestPaymentRequest is the unauthenticated manual-payment attestation: the
// submitting user points at their proof and the order moves to
// pending_verification until staff confirm it.
type AttestPaymentRequest struct {
	ProofRef string `json:"proof_ref"`
}

// ScanRequest redeems a ticket at the door.
type ScanRequest struct {
	Code string `json:"code"`
}

type Attendee struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	TierLabel string `json:"tier"`
}

type ScanResult struct {
	Attendee    Attendee  `json:"attendee"`
	CheckedInAt time.Time `json:"checked_in_at"`
}
