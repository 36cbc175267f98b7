package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaChannel implements Channel over a Kafka topic, keying messages by
// user id so subscribers can filter their own account's events. Used when the
// server runs as multiple instances; a resolve on one instance must reach
// coordinators waiting on another.
type KafkaChannel struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
}

// NewKafkaChannel creates a channel over the given topic.
// brokers must be non-empty. Call Close when shutting down.
func NewKafkaChannel(brokers []string, topic string) (*KafkaChannel, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same user always lands on the same partition
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaChannel{brokers: brokers, topic: topic, writer: writer}, nil
}

// Publish serializes the event as JSON and writes it keyed by userID.
// Uses a short timeout so a slow broker does not block the resolver.
func (c *KafkaChannel) Publish(ctx context.Context, userID string, ev Event) error {
	if c == nil || c.writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(userID),
		Value: payload,
	})
}

// Subscribe starts a reader at the topic tail and filters messages by key.
// Events published before the subscription are not replayed; the poll loop
// covers anything missed.
func (c *KafkaChannel) Subscribe(userID string) (Subscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		Topic:       c.topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSubscription{
		reader: reader,
		cancel: cancel,
		ch:     make(chan Event, subscriberBuffer),
	}

	go func() {
		defer close(sub.ch)
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("notify: kafka read error: %v", err)
				continue
			}
			if string(msg.Key) != userID {
				continue
			}
			var ev Event
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				log.Printf("notify: dropping undecodable event: %v", err)
				continue
			}
			select {
			case sub.ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (c *KafkaChannel) Close() error {
	if c == nil || c.writer == nil {
		return nil
	}
	return c.writer.Close()
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	ch     chan Event
	once   sync.Once
}

func (s *kafkaSubscription) Events() <-chan Event { return s.ch }

// Unsubscribe stops the read loop and closes the reader exactly once.
func (s *kafkaSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		if err := s.reader.Close(); err != nil {
			log.Printf("notify: closing kafka reader: %v", err)
		}
	})
}
