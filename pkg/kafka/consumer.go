package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Consumed message statuses
const (
	StatusProcessed = "processed"
	StatusInvalid   = "invalid"
	StatusFailed    = "failed"
)

// RecordHandler processes one decoded source record.
type RecordHandler func(ctx context.Context, record models.IncomingRecord) error

// MessageReader is the subset of kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads source records from a topic and hands them to a handler one
// at a time, in partition order.
type Consumer struct {
	reader   MessageReader
	topic    string
	logger   ectologger.Logger
	handler  RecordHandler
	validate *validator.Validate
	backoff  time.Duration
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

const maxRetryBackoff = 30 * time.Second

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler RecordHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return NewConsumerWithReader(reader, cfg.Topic, logger, handler)
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(reader MessageReader, topic string, logger ectologger.Logger, handler RecordHandler) *Consumer {
	return &Consumer{
		reader:   reader,
		topic:    topic,
		logger:   logger,
		handler:  handler,
		validate: validator.New(),
		backoff:  time.Second,
	}
}

// WithRetryBackoff sets the first wait before a failed record is retried.
// The wait doubles on each failure up to 30s.
func (c *Consumer) WithRetryBackoff(d time.Duration) *Consumer {
	c.backoff = d
	return c
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.topic,
	}).Info("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	record, err := c.DecodeRecord(msg)
	if err != nil {
		metrics.MessagesConsumedTotal.WithLabelValues(StatusInvalid).Inc()
		log.WithError(err).Error("Failed to parse message")
		// commit so a poison message does not block the partition
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.WithError(err).Error("Failed to commit message")
		}
		return
	}

	// A failed record is retried in place; the partition does not advance past it.
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, record)
		if err == nil {
			break
		}
		metrics.MessagesConsumedTotal.WithLabelValues(StatusFailed).Inc()
		log.WithError(err).WithField("attempt", attempt).Errorf("Failed to process message, retrying in %s", wait)

		select {
		case <-ctx.Done():
			log.Warn("Consumer stopping with message uncommitted")
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}

	metrics.MessagesConsumedTotal.WithLabelValues(StatusProcessed).Inc()
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
}

// DecodeRecord parses a message value as an IncomingRecord. A missing record
// id is taken from the message key, falling back to a content fingerprint.
func (c *Consumer) DecodeRecord(msg kafka.Message) (models.IncomingRecord, error) {
	var record models.IncomingRecord
	if err := json.Unmarshal(msg.Value, &record); err != nil {
		return record, fmt.Errorf("invalid record json: %w", err)
	}
	if err := c.validate.Struct(record); err != nil {
		return record, fmt.Errorf("invalid record: %w", err)
	}
	if _, _, err := record.Project(); err != nil {
		return record, err
	}

	if record.RecordID == "" {
		record.RecordID = string(msg.Key)
	}
	if record.RecordID == "" {
		var raw map[string]any
		if err := json.Unmarshal(msg.Value, &raw); err == nil {
			record.RecordID = fingerprint.Generate(raw)
		}
	}
	return record, nil
}
