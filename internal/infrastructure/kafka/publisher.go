package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability/logctx"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	componentPublisher = "kafka_publisher"
	headerEventType    = "event_type"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events to a single topic keyed by the event key, so all
// messages of one order land on the same partition.
type Publisher struct {
	w     messageWriter
	topic string
	log   observability.Logger
}

func NewPublisher(brokers []string, topic string, logger observability.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger observability.Logger) *Publisher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Publisher{
		w:     w,
		topic: topic,
		log:   logger.With(observability.F("component", componentPublisher)),
	}
}

func (p *Publisher) Publish(ctx context.Context, e outbox.Event, h outbox.Headers) error {
	if e == nil {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publisher: encode %s: %w", e.EventName(), err)
	}

	msg := kafkago.Message{
		Value:   body,
		Headers: toHeaders(e.EventName(), h),
	}
	if k, ok := e.(interface{ Key() string }); ok {
		msg.Key = []byte(k.Key())
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publisher: write %s: %w", e.EventName(), err)
	}

	logctx.FromOr(ctx, p.log).Info("order_published",
		observability.F("event", e.EventName()),
		observability.F("key", string(msg.Key)),
		observability.F("topic", p.topic),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

func toHeaders(eventName string, h outbox.Headers) []kafkago.Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafkago.Header, 0, len(h)+1)
	out = append(out, kafkago.Header{Key: headerEventType, Value: []byte(eventName)})
	for _, k := range keys {
		out = append(out, kafkago.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}
