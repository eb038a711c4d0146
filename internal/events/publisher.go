package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

const TransactionUpdatedTopic = "customer.transaction.updated"

type TransactionUpdated struct {
	CustomerID     string    `json:"customer_id"`
	Reference      string    `json:"reference"`
	TransactionID  string    `json:"transaction_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	Version        int64     `json:"version"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher interface {
	PublishTransactionUpdated(ctx context.Context, ev TransactionUpdated)
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewWriter builds the writer for the transaction updated topic.
func NewWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers),
		Topic:    TransactionUpdatedTopic,
		Balancer: &kafka.Hash{},
	}
}

// PublishTransactionUpdated keys the message by reference so all updates of
// one registration land on the same partition. Failures are logged only.
func (p *KafkaPublisher) PublishTransactionUpdated(ctx context.Context, ev TransactionUpdated) {
	eventJSON, err := json.Marshal(ev)
	if err != nil {
		telemetry.Logger.Error("Failed to encode transaction event", zap.Error(err))
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Reference),
		Value: eventJSON,
	}); err != nil {
		telemetry.Logger.Error("Failed to publish transaction event to Kafka",
			zap.String("reference", ev.Reference),
			zap.Error(err),
		)
	}
}

type NopPublisher struct{}

func (NopPublisher) PublishTransactionUpdated(context.Context, TransactionUpdated) {}
