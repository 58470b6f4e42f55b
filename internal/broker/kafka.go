package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"provenance-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	headerContentType = "content-type"
	headerEventType   = "event-type"

	// maxHandleAttempts bounds how often one message is retried before the
	// consumer moves past it.
	maxHandleAttempts = 3
	retryBackoff      = time.Second
)

// typedEvent is implemented by events that name their type.
type typedEvent interface {
	Type() string
}

// Producer writes provenance events to one topic.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a producer for topic. Messages are partitioned by key
// so the events of one product keep their order.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishEvent encodes event as JSON and writes it under key.
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	ctx, span := util.StartSpan(ctx, "kafka.publish")
	defer span.End()

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", key, err)
	}

	headers := []kafka.Header{{Key: headerContentType, Value: []byte("application/json")}}
	if te, ok := event.(typedEvent); ok {
		headers = append(headers, kafka.Header{Key: headerEventType, Value: []byte(te.Type())})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish %s to %s: %w", key, p.writer.Topic, err)
	}

	p.logger.Debug("Published event", zap.String("key", key), zap.String("topic", p.writer.Topic))
	return nil
}

// Close flushes pending writes and closes the producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads provenance events as part of a consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

// NewConsumer creates a consumer reading topic from the earliest offset the
// group has not committed.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader, logger: util.GetLogger()}
}

// Close leaves the group and closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler applies one message.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx ends. A failing message is
// retried up to maxHandleAttempts times and then committed anyway so one bad
// event cannot stall its partition.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group", c.reader.Config().GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			c.logger.Warn("Error fetching message", zap.Error(err))
			if !sleep(ctx, retryBackoff) {
				return ctx.Err()
			}
			continue
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			util.MirrorWriteFailuresTotal.WithLabelValues("stream_skipped").Inc()
			c.logger.Error("Skipping message after repeated failures",
				zap.String("key", string(msg.Key)),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("Error committing message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	ctx, span := util.StartSpan(ctx, "kafka.consume")
	defer span.End()

	var err error
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		c.logger.Warn("Error handling message",
			zap.String("key", string(msg.Key)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < maxHandleAttempts && !sleep(ctx, retryBackoff*time.Duration(attempt)) {
			return ctx.Err()
		}
	}
	span.RecordError(err)
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
