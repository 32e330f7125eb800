package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"feedback_ingest/internal/domain"
)

const TypeAnalysisImported = "analysis.imported"

type envelope struct {
	Type string             `json:"type"`
	Data domain.ImportEvent `json:"data"`
}

// Publisher writes import events to Kafka, keyed by hotel id so one hotel's
// imports stay ordered on a partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}}
}

func (p *Publisher) PublishImport(ctx context.Context, ev domain.ImportEvent) error {
	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing import event: %w", err)
	}
	log.Debug().Str("hotel_id", ev.HotelID).Str("import_id", ev.ImportID).Msg("import event published")
	return nil
}

func (p *Publisher) Close() error { return p.writer.Close() }

func toMessage(ev domain.ImportEvent) (kafka.Message, error) {
	value, err := json.Marshal(envelope{Type: TypeAnalysisImported, Data: ev})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling import event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.HotelID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeAnalysisImported)},
		},
	}, nil
}
