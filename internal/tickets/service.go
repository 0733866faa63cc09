package tickets

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	ticketdb "ms-registration/internal/tickets/db"
	"ms-registration/internal/tickets/qr"
	"ms-registration/internal/utils"
)

type TicketDBLayer interface {
	CreateTicket(ticket models.Ticket) error
	GetTicketByOrder(orderID string) (*models.Ticket, error)
	GetTicketByCode(code string) (*models.Ticket, error)
	Redeem(ticketID, orderID string, now time.Time) (bool, error)
}

type OrderDBLayer interface {
	GetOrderByID(id string) (*models.Order, error)
	SetTicketCode(orderID, code string) error
}

type CheckInNotifier interface {
	TicketCheckedIn(order models.Order, checkedInAt time.Time)
}

// TicketService mints tickets for paid orders and redeems them at the door.
type TicketService struct {
	DB       TicketDBLayer
	Orders   OrderDBLayer
	Notifier CheckInNotifier
	logger   *logger.Logger
}

func NewTicketService(db TicketDBLayer, orders OrderDBLayer, notifier CheckInNotifier, log *logger.Logger) *TicketService {
	return &TicketService{DB: db, Orders: orders, Notifier: notifier, logger: log}
}

// Issue mints exactly one ticket for a paid order. A second invocation, such
// as a duplicate webhook delivery or the loser of a concurrent insert, returns
// the existing ticket unchanged.
func (s *TicketService) Issue(order models.Order) (*models.Ticket, error) {
	if order.Status != models.StatusPaid {
		return nil, errs.ErrInvalidTransition
	}

	existing, err := s.DB.GetTicketByOrder(order.OrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up ticket for order %s: %w", order.OrderID, err)
	}

	code := utils.GenerateTicketCode(order.OrderID)
	qrPNG, err := qr.EncodePNG(code)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket QR: %w", err)
	}

	ticket := models.Ticket{
		TicketID: uuid.NewString(),
		OrderID:  order.OrderID,
		Code:     code,
		QRCode:   qrPNG,
		IssuedAt: time.Now(),
	}

	if err := s.DB.CreateTicket(ticket); err != nil {
		if errors.Is(err, ticketdb.ErrTicketExists) {
			s.logger.Info("TICKET", fmt.Sprintf("Concurrent issuance for order %s, returning existing ticket", order.OrderID))
			return s.DB.GetTicketByOrder(order.OrderID)
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	if err := s.Orders.SetTicketCode(order.OrderID, code); err != nil {
		s.logger.Error("TICKET", fmt.Sprintf("Failed to store ticket code on order %s: %v", order.OrderID, err))
	}

	s.logger.Info("TICKET", fmt.Sprintf("Issued ticket %s for order %s", ticket.TicketID, order.OrderID))
	return &ticket, nil
}

// GetTicketByCode looks a ticket up for display.
func (s *TicketService) GetTicketByCode(code string) (*models.Ticket, error) {
	return s.DB.GetTicketByCode(code)
}

// Scan validates and consumes a ticket. One-way: a second scan of the same
// code reports AlreadyUsed with the original check-in time and attendee so
// staff can see who already entered.
func (s *TicketService) Scan(code string) (*models.ScanResult, error) {
	ticket, err := s.DB.GetTicketByCode(code)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.logger.LogScan(code, "unknown ticket code")
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up ticket: %w", err)
	}

	order, err := s.Orders.GetOrderByID(ticket.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s for ticket: %w", ticket.OrderID, err)
	}

	// Unreachable if issuance preconditions held, but checked anyway.
	if order.Status != models.StatusPaid {
		s.logger.LogScan(code, fmt.Sprintf("order %s not paid (status=%s)", order.OrderID, order.Status))
		return nil, errs.ErrNotPaid
	}

	if ticket.IsUsed {
		return nil, s.alreadyUsed(ticket, order)
	}

	now := time.Now()
	redeemed, err := s.DB.Redeem(ticket.TicketID, order.OrderID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}
	if !redeemed {
		// Lost a concurrent scan; report the winner's check-in.
		current, err := s.DB.GetTicketByCode(code)
		if err != nil {
			return nil, err
		}
		return nil, s.alreadyUsed(current, order)
	}

	s.logger.LogScan(code, fmt.Sprintf("checked in %s (order %s)", order.FullName, order.OrderID))
	if s.Notifier != nil {
		s.Notifier.TicketCheckedIn(*order, now)
	}
	return &models.ScanResult{
		Attendee: models.Attendee{
			Name:      order.FullName,
			Email:     order.Email,
			Phone:     order.Phone,
			TierLabel: order.TierLabel,
		},
		CheckedInAt: now,
	}, nil
}

func (s *TicketService) alreadyUsed(ticket *models.Ticket, order *models.Order) error {
	usedAt := time.Time{}
	if ticket.UsedAt != nil {
		usedAt = *ticket.UsedAt
	}
	s.logger.LogScan(ticket.Code, fmt.Sprintf("already used at %s", usedAt.Format(time.RFC3339)))
	return &errs.AlreadyUsedError{
		UsedAt:       usedAt,
		AttendeeName: order.FullName,
		Email:        order.Email,
		Phone:        order.Phone,
		TierLabel:    order.TierLabel,
	}
}
