package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service is the outbound notification sink. Every dispatch runs in its own
// goroutine and swallows failures after logging them: the payment and
// check-in transactions never wait on, or fail because of, a notification.
type Service struct {
	Kafka      Publisher
	WhatsApp   *WhatsAppClient
	topics     config.TopicConfig
	teamNumber string
	enabled    bool
	logger     *logger.Logger
}

func NewService(kafka Publisher, whatsapp *WhatsAppClient, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		Kafka:      kafka,
		WhatsApp:   whatsapp,
		topics:     cfg.Kafka.Topics,
		teamNumber: cfg.WhatsApp.TeamNumber,
		enabled:    cfg.Kafka.Enabled,
		logger:     log,
	}
}

func (s *Service) OrderCreated(order models.Order, instructions *models.PaymentInstructions) {
	go func() {
		s.publish(s.topics.OrderCreated, order.OrderID, order)

		message := fmt.Sprintf("📋 New registration\nOrder: %s\nName: %s\nTier: %s\nTotal: %s",
			order.OrderID, order.FullName, order.TierLabel, formatAmount(order.TotalAmount, order.Currency))
		if instructions != nil {
			message += fmt.Sprintf("\n\nPay via UPI: %s", instructions.UPIID)
		}
		s.sendWhatsApp(order.Phone, message)
		s.sendWhatsApp(s.teamNumber, message)
	}()
}

func (s *Service) PaymentConfirmed(order models.Order, ticket *models.Ticket) {
	go func() {
		payload := struct {
			models.Order
			TicketID string `json:"ticket_id"`
		}{Order: order, TicketID: ticket.TicketID}
		s.publish(s.topics.PaymentConfirmed, order.OrderID, payload)

		message := fmt.Sprintf("🎉 PAYMENT CONFIRMED!\n\nOrder: %s\nName: %s\nTier: %s\nBase: %s\nGST (18%%): %s\nTotal Paid: %s\n\n🎟️ Ticket: %s\nKeep this code for entry.",
			order.OrderID, order.FullName, order.TierLabel,
			formatAmount(order.BaseAmount, order.Currency),
			formatAmount(order.TaxAmount, order.Currency),
			formatAmount(order.TotalAmount, order.Currency),
			ticket.Code)
		s.sendWhatsApp(order.Phone, message)
		s.sendWhatsApp(s.teamNumber, message)
	}()
}

func (s *Service) TicketCheckedIn(order models.Order, checkedInAt time.Time) {
	go func() {
		payload := struct {
			OrderID     string    `json:"order_id"`
			TicketCode  string    `json:"ticket_code"`
			CheckedInAt time.Time `json:"checked_in_at"`
		}{OrderID: order.OrderID, TicketCode: order.TicketCode, CheckedInAt: checkedInAt}
		s.publish(s.topics.TicketCheckedIn, order.OrderID, payload)
	}()
}

func (s *Service) publish(topic, key string, payload any) {
	if !s.enabled || s.Kafka == nil {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("NOTIFY", fmt.Sprintf("Failed to marshal %s event: %v", topic, err))
		return
	}
	if err := s.Kafka.Publish(topic, key, value); err != nil {
		s.logger.Error("NOTIFY", fmt.Sprintf("Kafka publish to %s failed: %v", topic, err))
	}
}

func (s *Service) sendWhatsApp(to, message string) {
	if s.WhatsApp == nil || !s.WhatsApp.Enabled() || to == "" {
		return
	}
	if err := s.WhatsApp.SendText(to, message); err != nil {
		s.logger.Error("NOTIFY", fmt.Sprintf("WhatsApp send to %s failed: %v", to, err))
	}
}

func formatAmount(minorUnits int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minorUnits/100, minorUnits%100)
}
