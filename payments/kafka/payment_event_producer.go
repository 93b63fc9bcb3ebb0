package kafka

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"opencart-backend/payments/models"
)

// PaymentEventProducer publishes payment lifecycle events to Kafka.
type PaymentEventProducer struct {
	writer *kafkago.Writer
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafkago.Writer{
		Addr:     kafkago.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
	}
	logger.Info("PaymentEventProducer initialized",
		zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &PaymentEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *PaymentEventProducer) SendPaymentEvent(event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Warn("Failed to publish payment event",
			zap.String("order_id", event.OrderID),
			zap.String("type", event.Type),
			zap.Error(err))
		return err
	}

	p.logger.Info("Payment event published",
		zap.String("order_id", event.OrderID),
		zap.String("type", event.Type))
	return nil
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}
