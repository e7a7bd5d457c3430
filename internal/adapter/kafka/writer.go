package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/classify"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/config"
)

// Writer publishes classification events to the sink topic for the
// external persistence layer. It implements pipeline.EventSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and publishes classification events in a single
// WriteMessages call. Keyed by station so one station's events stay
// ordered within a partition.
func (w *Writer) Publish(ctx context.Context, events []classify.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a classification event into a Kafka message.
func serializeToMessage(event classify.Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize classification event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tier", Value: []byte(event.Tier)},
			{Key: "pollutant", Value: []byte(event.Pollutant)},
			{Key: "window_end", Value: []byte(event.WindowEnd.Format(time.RFC3339))},
		},
	}, nil
}
