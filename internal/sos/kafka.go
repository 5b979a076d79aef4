package sos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka-go's Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaNotifier publishes SOS events to a topic, keyed by user id so one
// user's alerts stay ordered within a partition.
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaNotifier creates a producer for topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaNotifier{writer: w}
}

// NewKafkaNotifierWithWriter wraps an existing writer.
func NewKafkaNotifierWithWriter(w MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Notify(ctx context.Context, ev Event) error {
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	return eris.Wrap(k.writer.WriteMessages(ctx, msg), "sos: kafka write")
}

// Close flushes and closes the producer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

func eventMessage(ev Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, eris.Wrap(err, "sos: serialize event")
	}
	return kafkago.Message{
		Key:   []byte(ev.UserID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_id", Value: []byte(ev.AlertID)},
			{Key: "sent_at", Value: []byte(ev.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
