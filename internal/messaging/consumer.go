package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

var consumerTracer = otel.Tracer("messaging/consumer")

type EventHandler func(ctx context.Context, event domain.Event) error

// ErrMalformedEvent marks a message whose payload is not a domain.Event.
// Such messages are committed and skipped without retrying.
var ErrMalformedEvent = errors.New("malformed event")

type Consumer struct {
	reader     *kafka.Reader
	topic      string
	groupID    string
	maxRetries uint64
	retryBase  time.Duration
}

type consumerConfig struct {
	reader     kafka.ReaderConfig
	maxRetries uint64
	retryBase  time.Duration
}

type ConsumerOption func(*consumerConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

// WithRetries sets how many times a failing handler is retried for one
// message before Consume gives up, waiting from base up to 30s in between.
func WithRetries(n uint64, base time.Duration) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.maxRetries = n
		cfg.retryBase = base
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		maxRetries: 5,
		retryBase:  500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		reader:     kafka.NewReader(cfg.reader),
		topic:      topic,
		groupID:    groupID,
		maxRetries: cfg.maxRetries,
		retryBase:  cfg.retryBase,
	}
}

// Consume delivers events until ctx is done or a handler keeps failing past
// its retries. A message is committed only after its handler returns nil, so
// an uncommitted message is redelivered to the group after a restart.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil && !errors.Is(err, ErrMalformedEvent) {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler EventHandler) error {
	return retry(ctx, c.maxRetries, c.retryBase, func() error {
		return c.processMessage(ctx, msg, handler)
	})
}

func retry(ctx context.Context, maxRetries uint64, base time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if errors.Is(err, ErrMalformedEvent) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler EventHandler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, kafkaCarrier{msg: &msg})

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		err = fmt.Errorf("%w at offset %d: %v", ErrMalformedEvent, msg.Offset, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := handler(spanCtx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
