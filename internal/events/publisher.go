// Package events publishes engagement events (likes, bookmarks) to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"civicfeed/internal/models"
	"civicfeed/internal/observability"

	kgo "github.com/segmentio/kafka-go"
)

// EngagementEvent is emitted after a like or bookmark toggle commits.
type EngagementEvent struct {
	Kind       models.MutationKind `json:"kind"`
	PostID     int64               `json:"post_id"`
	UserID     uint                `json:"user_id"`
	Active     bool                `json:"active"`
	Count      models.Count        `json:"count"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Publisher hands engagement events to downstream consumers.
type Publisher interface {
	PublishEngagement(ctx context.Context, e EngagementEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by post id so a post's events stay ordered.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns an async publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kgo.RequireOne,
		Async:        true,
	}}
}

func (p *KafkaPublisher) PublishEngagement(ctx context.Context, e EngagementEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kgo.Message{
		Key:   []byte(strconv.FormatInt(e.PostID, 10)),
		Value: value,
		Time:  e.OccurredAt,
	})
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.EngagementEvents.WithLabelValues(string(e.Kind), result).Inc()
	return err
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishEngagement(context.Context, EngagementEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// New returns a Kafka publisher, or a NopPublisher when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
