package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

const EventOrderPlaced = "order.placed"

// Notifier sends the order confirmation to the customer. Delivery is best
// effort: a failure never affects the stored order.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *domain.Order) error
	Close() error
}

type OrderPlacedEvent struct {
	EventID        string                `json:"event_id"`
	Type           string                `json:"type"`
	OrderID        int64                 `json:"order_id"`
	OrderNumber    string                `json:"order_number"`
	CustomerName   string                `json:"customer_name"`
	CustomerEmail  string                `json:"customer_email"`
	DeliveryMethod domain.DeliveryMethod `json:"delivery_method"`
	PaymentMethod  domain.PaymentMethod  `json:"payment_method"`
	Total          decimal.Decimal       `json:"total"`
	Items          []domain.OrderItem    `json:"items"`
	Timestamp      time.Time             `json:"timestamp"`
}

func NewOrderPlacedEvent(order *domain.Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		EventID:        uuid.NewString(),
		Type:           EventOrderPlaced,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		DeliveryMethod: order.DeliveryMethod,
		PaymentMethod:  order.PaymentMethod,
		Total:          order.Total,
		Items:          order.Items,
		Timestamp:      order.CreatedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
	log     *logrus.Logger
}

// NewKafkaNotifier publishes order.placed events for the mail service to
// pick up. Messages are keyed by order number.
func NewKafkaNotifier(brokers []string, topic string, logger *logrus.Logger) Notifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaNotifier(writer, logger)
}

func newKafkaNotifier(writer messageWriter, logger *logrus.Logger) *kafkaNotifier {
	return &kafkaNotifier{
		writer:  writer,
		timeout: 10 * time.Second,
		log:     logger,
	}
}

func (n *kafkaNotifier) SendOrderConfirmation(ctx context.Context, order *domain.Order) error {
	event := NewOrderPlacedEvent(order)
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Errorf("Notifier: Failed to marshal event for order %s: %v", order.OrderNumber, err)
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(order.OrderNumber),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.log.WithFields(logrus.Fields{
			"order_number": order.OrderNumber,
			"event_id":     event.EventID,
		}).Errorf("Notifier: Failed to publish order event: %v", err)
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	n.log.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"event_id":     event.EventID,
	}).Info("Notifier: Order confirmation event published")
	return nil
}

func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}

type logNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier only records the confirmation. Used when no brokers are
// configured.
func NewLogNotifier(logger *logrus.Logger) Notifier {
	return &logNotifier{log: logger}
}

func (n *logNotifier) SendOrderConfirmation(_ context.Context, order *domain.Order) error {
	n.log.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"email":        order.CustomerEmail,
		"total":        order.Total.StringFixed(2),
	}).Info("Notifier: Order confirmation would be sent")
	return nil
}

func (n *logNotifier) Close() error { return nil }
