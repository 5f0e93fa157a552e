package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:             3,
		OrderNumber:    "ORD-2026-00003",
		CustomerName:   "Anna",
		CustomerEmail:  "anna@example.com",
		DeliveryMethod: domain.DeliveryPickup,
		PaymentMethod:  domain.PaymentCash,
		Total:          decimal.RequireFromString("1000.00"),
		CreatedAt:      time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifierPublishesKeyedEvent(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, quietLogger())

	require.NoError(t, n.SendOrderConfirmation(context.Background(), sampleOrder()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ORD-2026-00003", string(w.msgs[0].Key))

	var event OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, EventOrderPlaced, event.Type)
	assert.Equal(t, int64(3), event.OrderID)
	assert.NotEmpty(t, event.EventID)
	assert.True(t, event.Total.Equal(decimal.NewFromInt(1000)))
}

func TestKafkaNotifierWrapsWriteError(t *testing.T) {
	brokerDown := errors.New("broker down")
	n := newKafkaNotifier(&fakeWriter{err: brokerDown}, quietLogger())

	err := n.SendOrderConfirmation(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, brokerDown)
}

func TestSimulatedPayment(t *testing.T) {
	p := NewSimulatedPaymentProcessor("https://pay.example.com/checkout/", quietLogger())

	tests := []struct {
		method  domain.PaymentMethod
		success bool
		hasURL  bool
	}{
		{domain.PaymentCash, true, false},
		{domain.PaymentCard, true, false},
		{domain.PaymentOnline, true, true},
		{domain.PaymentMethod("barter"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			order := sampleOrder()
			order.PaymentMethod = tt.method

			res, err := p.ProcessPayment(context.Background(), order)
			require.NoError(t, err)
			assert.Equal(t, tt.success, res.Success)
			if tt.hasURL {
				assert.True(t, strings.HasPrefix(res.PaymentURL, "https://pay.example.com/checkout/ORD-2026-00003?token="))
			} else {
				assert.Empty(t, res.PaymentURL)
			}
		})
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(quietLogger())
	assert.NoError(t, n.SendOrderConfirmation(context.Background(), sampleOrder()))
	assert.NoError(t, n.Close())
}
