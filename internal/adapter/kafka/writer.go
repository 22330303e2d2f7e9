package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// Writer publishes monthly climate facts to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the climate facts topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadFacts serializes and publishes facts in a single WriteMessages call.
// Facts are keyed by station and month so reruns land on the same partition.
func (w *Writer) LoadFacts(ctx context.Context, facts []domain.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	processedAt := domain.Now()
	msgs := make([]kafkago.Message, len(facts))
	for i := range facts {
		msg, err := serializeToMessage(facts[i], processedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write facts to %s: %w", w.writer.Topic, err)
	}
	w.logger.Debug("facts published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// factMessage is the wire form of a Fact. Missing measures are null.
type factMessage struct {
	Month    domain.Month        `json:"month"`
	Station  int64               `json:"station"`
	Measures map[string]*float64 `json:"measures"`
}

func messageKey(f domain.Fact) []byte {
	return []byte(strconv.FormatInt(f.Station, 10) + "|" + string(f.Month))
}

// serializeToMessage marshals a Fact into a Kafka message.
func serializeToMessage(f domain.Fact, processedAt time.Time) (kafkago.Message, error) {
	body := factMessage{
		Month:    f.Month,
		Station:  f.Station,
		Measures: make(map[string]*float64, domain.NumMeasures),
	}
	for _, m := range domain.AllMeasures() {
		v := f.Measures[m]
		if math.IsNaN(v) {
			body.Measures[m.String()] = nil
			continue
		}
		body.Measures[m.String()] = &v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fact %s: %w", messageKey(f), err)
	}
	return kafkago.Message{
		Key:   messageKey(f),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "month", Value: []byte(f.Month)},
			{Key: "station", Value: []byte(strconv.FormatInt(f.Station, 10))},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
