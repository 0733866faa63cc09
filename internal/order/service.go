package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ms-registration/internal/config"
	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/pricing"
	"ms-registration/internal/tickets/qr"
	"ms-registration/internal/utils"
)

type DBLayer interface {
	CreateOrder(order models.Order) error
	GetOrderByID(id string) (*models.Order, error)
	GetOrderByGatewayRef(gatewayOrderRef string) (*models.Order, error)
	AttachGatewayOrder(orderID, gatewayOrderRef string, amount int64, currency string) error
	MarkPendingVerification(orderID, proofRef string) (bool, error)
	MarkPaid(orderID, gatewayPaymentRef string) (bool, error)
	MarkGatewayOrderPaid(gatewayOrderRef string) error
}

type Gateway interface {
	KeyID() string
	CreateRemoteOrder(ctx context.Context, totalAmount int64, currency, receiptID string, metadata map[string]string) (string, error)
	VerifySignature(gatewayOrderRef, gatewayPaymentRef, signature string) error
}

type TicketIssuer interface {
	Issue(order models.Order) (*models.Ticket, error)
}

// ConfirmLock serializes concurrent confirmations of the same gateway order.
// A denied lock means another confirmation is already in flight and the
// caller is rejected; the database conditional update stays the hard guard
// underneath.
type ConfirmLock interface {
	LockConfirmation(gatewayOrderRef string) (bool, error)
	UnlockConfirmation(gatewayOrderRef string) error
}

type Notifier interface {
	OrderCreated(order models.Order, instructions *models.PaymentInstructions)
	PaymentConfirmed(order models.Order, ticket *models.Ticket)
}

type OrderService struct {
	DB       DBLayer
	Gateway  Gateway
	Tickets  TicketIssuer
	Lock     ConfirmLock
	Notifier Notifier

	pricing  *pricing.Engine
	validate *validator.Validate
	manual   config.ManualPaymentConfig
	allowed  []string
	logger   *logger.Logger
}

func NewOrderService(db DBLayer, gw Gateway, issuer TicketIssuer, lock ConfirmLock, notifier Notifier, engine *pricing.Engine, cfg *config.Config, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Gateway:  gw,
		Tickets:  issuer,
		Lock:     lock,
		Notifier: notifier,
		pricing:  engine,
		validate: newValidator(),
		manual:   cfg.Manual,
		allowed:  cfg.Pricing.AllowedCurrencies,
		logger:   log,
	}
}

// newOrder validates the customer and prices a fresh order from the tier
// table at this instant. The client's displayed tier is advisory only.
func (s *OrderService) newOrder(req models.CreateOrderRequest, method string) (*models.Order, error) {
	if err := validateCustomer(s.validate, req.Customer); err != nil {
		return nil, err
	}
	currency, err := canonicalCurrency(s.allowed, req.Currency)
	if err != nil {
		return nil, err
	}

	quote := s.pricing.QuoteAt(time.Now())
	if req.TierLabel != "" && req.TierLabel != quote.Tier.Label {
		s.logger.Warn("ORDER", fmt.Sprintf("Client tier %q superseded by current tier %q", req.TierLabel, quote.Tier.Label))
	}

	now := time.Now()
	order := &models.Order{
		OrderID:       uuid.NewString(),
		FullName:      req.Customer.FullName,
		Email:         req.Customer.Email,
		Phone:         req.Customer.Phone,
		Speciality:    req.Customer.Speciality,
		Hospital:      req.Customer.Hospital,
		City:          req.Customer.City,
		Notes:         req.Customer.Notes,
		TierLabel:     quote.Tier.Label,
		BaseAmount:    quote.BaseAmount,
		TaxAmount:     quote.TaxAmount,
		TotalAmount:   quote.TotalAmount,
		Currency:      currency,
		Status:        models.StatusPendingPayment,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return order, nil
}

/// CreateGatewayOrder opens a gateway-hosted order: price it, persist it,
// open the remote order, and hand the client everything the checkout widget
// needs. If the gateway call fails the local order stays pending_payment and
// is abandoned by convention.
func (s *OrderService) CreateGatewayOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	order, err := s.newOrder(req, models.PaymentMethodRazorpay)
	if err != nil {
		return nil, err
	}

	if err := s.DB.CreateOrder(*order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.LogOrder("CREATE", order.OrderID, fmt.Sprintf("tier=%s total=%d %s", order.TierLabel, order.TotalAmount, order.Currency))

	metadata := map[string]string{
		"order_id":       order.OrderID,
		"customer_name":  order.FullName,
		"customer_email": order.Email,
		"tier":           order.TierLabel,
	}
	// The order id travels in the notes; the receipt is a separate
	// reconciliation handle.
	receiptID := utils.GenerateReceiptID("rcpt_")
	gatewayRef, err := s.Gateway.CreateRemoteOrder(ctx, order.TotalAmount, order.Currency, receiptID, metadata)
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Gateway order creation failed for order %s: %v", order.OrderID, err))
		return nil, err
	}

	if err := s.DB.AttachGatewayOrder(order.OrderID, gatewayRef, order.TotalAmount, order.Currency); err != nil {
		return nil, fmt.Errorf("failed to attach gateway order: %w", err)
	}
	order.GatewayOrderRef = gatewayRef

	s.Notifier.OrderCreated(*order, nil)

	return &models.CreateOrderResponse{
		OrderID:         order.OrderID,
		GatewayOrderRef: gatewayRef,
		GatewayKeyID:    s.Gateway.KeyID(),
		TierLabel:       order.TierLabel,
		BaseAmount:      order.BaseAmount,
		TaxAmount:       order.TaxAmount,
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
	}, nil
}

// CreateManualOrder opens an order on the manual (UPI / bank transfer) path
// and returns payment instructions instead of a gateway handle.
func (s *OrderService) CreateManualOrder(req models.CreateOrderRequest) (*models.ManualOrderResponse, error) {
	order, err := s.newOrder(req, models.PaymentMethodUPI)
	if err != nil {
		return nil, err
	}

	if err := s.DB.CreateOrder(*order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.LogOrder("CREATE_MANUAL", order.OrderID, fmt.Sprintf("tier=%s total=%d %s", order.TierLabel, order.TotalAmount, order.Currency))

	instructions := s.paymentInstructions(*order)
	s.Notifier.OrderCreated(*order, &instructions)

	return &models.ManualOrderResponse{
		OrderID:             order.OrderID,
		TierLabel:           order.TierLabel,
		BaseAmount:          order.BaseAmount,
		TaxAmount:           order.TaxAmount,
		TotalAmount:         order.TotalAmount,
		Currency:            order.Currency,
		PaymentInstructions: instructions,
	}, nil
}

func (s *OrderService) paymentInstructions(order models.Order) models.PaymentInstructions {
	uri := fmt.Sprintf("upi://pay?pa=%s&am=%d.%02d&cu=%s&tn=Event Registration - %s",
		s.manual.UPIID, order.TotalAmount/100, order.TotalAmount%100, order.Currency, order.TierLabel)

	qrPNG, err := qr.EncodePNG(uri)
	if err != nil {
		// Instructions still carry the raw URI.
		s.logger.Error("ORDER", fmt.Sprintf("Failed to render UPI QR for order %s: %v", order.OrderID, err))
	}

	return models.PaymentInstructions{
		UPIID:     s.manual.UPIID,
		UPIURI:    uri,
		UPIQRCode: qrPNG,
		BankDetails: models.BankDetails{
			AccountName:   s.manual.AccountName,
			AccountNumber: s.manual.AccountNumber,
			IFSC:          s.manual.IFSC,
			BankName:      s.manual.BankName,
		},
	}
}

// ConfirmGatewayPayment is the trust boundary between the attacker-visible
// "checkout closed" event and the irreversible act of granting a ticket. The
// signature check happens before anything else; a failed check leaves the
// order unpaid.
func (s *OrderService) ConfirmGatewayPayment(req models.ConfirmPaymentRequest) (*models.ConfirmPaymentResponse, error) {
	if err := s.Gateway.VerifySignature(req.GatewayOrderRef, req.GatewayPaymentRef, req.Signature); err != nil {
		return nil, err
	}

	if locked, err := s.Lock.LockConfirmation(req.GatewayOrderRef); err != nil {
		// A dead lock store must not block a verified payment.
		s.logger.Warn("PAYMENT", fmt.Sprintf("Confirmation lock unavailable for %s: %v", req.GatewayOrderRef, err))
	} else if !locked {
		s.logger.LogPayment("DUPLICATE", req.GatewayOrderRef, "Confirmation already in flight")
		return nil, errs.ErrDuplicateOperation
	} else {
		defer func() {
			if err := s.Lock.UnlockConfirmation(req.GatewayOrderRef); err != nil {
				s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to release confirmation lock for %s: %v", req.GatewayOrderRef, err))
			}
		}()
	}

	order, err := s.DB.GetOrderByGatewayRef(req.GatewayOrderRef)
	if err != nil {
		return nil, err
	}

	return s.settle(order, req.GatewayPaymentRef, req.GatewayOrderRef)
}

// VerifyManualPayment is the staff attestation for the non-gateway path. It
// carries no cryptographic proof, so the router must only expose it behind
// the staff capability.
func (s *OrderService) VerifyManualPayment(orderID, paymentRef string) (*models.ConfirmPaymentResponse, error) {
	order, err := s.DB.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	return s.settle(order, paymentRef, "")
}

// settle marks the order paid and issues its ticket. The conditional update
// makes this idempotent: a duplicate delivery loses the write race, refetches
// and returns the existing ticket rather than erroring the user or minting a
// second one.
func (s *OrderService) settle(order *models.Order, paymentRef, gatewayOrderRef string) (*models.ConfirmPaymentResponse, error) {
	updated, err := s.DB.MarkPaid(order.OrderID, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if !updated {
		current, err := s.DB.GetOrderByID(order.OrderID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.StatusPaid {
			return nil, errs.ErrInvalidTransition
		}
		s.logger.LogPayment("DUPLICATE", order.OrderID, "payment already confirmed, returning existing ticket")
		ticket, err := s.Tickets.Issue(*current)
		if err != nil {
			return nil, err
		}
		return &models.ConfirmPaymentResponse{
			OrderID:    current.OrderID,
			Status:     current.Status,
			TicketCode: ticket.Code,
		}, nil
	}

	order.Status = models.StatusPaid
	order.GatewayPaymentRef = paymentRef
	s.logger.LogPayment("CONFIRMED", order.OrderID, fmt.Sprintf("payment_ref=%s", paymentRef))

	if gatewayOrderRef != "" {
		if err := s.DB.MarkGatewayOrderPaid(gatewayOrderRef); err != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to update gateway mapping for %s: %v", gatewayOrderRef, err))
		}
	}

	ticket, err := s.Tickets.Issue(*order)
	if err != nil {
		return nil, fmt.Errorf("failed to issue ticket for order %s: %w", order.OrderID, err)
	}
	order.TicketCode = ticket.Code

	s.Notifier.PaymentConfirmed(*order, ticket)

	return &models.ConfirmPaymentResponse{
		OrderID:    order.OrderID,
		Status:     order.Status,
		TicketCode: ticket.Code,
	}, nil
}

// AttestManualPayment is the only transition a non-privileged caller may
// invoke directly: the submitting user points at their payment proof and the
// order waits for staff verification. Repeat attestations are no-ops.
func (s *OrderService) AttestManualPayment(orderID, proofRef string) error {
	updated, err := s.DB.MarkPendingVerification(orderID, proofRef)
	if err != nil {
		return fmt.Errorf("failed to record attestation: %w", err)
	}
	if updated {
		s.logger.LogOrder("ATTEST", orderID, fmt.Sprintf("proof_ref=%s", proofRef))
		return nil
	}

	order, err := s.DB.GetOrderByID(orderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case models.StatusPendingVerification:
		return nil
	case models.StatusPaid:
		return errs.ErrInvalidTransition
	default:
		return errs.ErrInvalidTransition
	}
}

func (s *OrderService) GetOrder(id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", id, err)
	}
	return order, nil
}
