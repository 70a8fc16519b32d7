package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"sentinel/internal/config"
	"sentinel/internal/constants"
	"sentinel/internal/logger"
	"sentinel/pkg/errors"
	"sentinel/pkg/logging"
	"sentinel/pkg/metrics"
	"sentinel/pkg/models"
	"sentinel/pkg/retry"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg *models.QueueMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Keyed by comment so redeliveries of the same comment stay ordered
	// within a partition.
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(msg.CommentID),
			Value: body,
			Time:  time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

// publishRaw forwards bytes as-is, used for poison messages whose envelope
// cannot be decoded.
func (p *KafkaProducer) publishRaw(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	producer    *KafkaProducer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		producer:    NewKafkaProducer(cfg, log),
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", topic)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			var envelope models.QueueMessage
			if err := json.Unmarshal(m.Value, &envelope); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "Unparseable envelope, routing to DLQ",
					"error", err,
					"topic", topic,
				)
				if c.cfg.DLQTopic != "" {
					if pubErr := c.producer.publishRaw(ctx, c.cfg.DLQTopic, m.Key, m.Value); pubErr != nil {
						c.logger.ErrorwCtx(consumeCtx, "Failed to publish poison message to DLQ",
							"error", pubErr,
							"dlq_topic", c.cfg.DLQTopic,
						)
					} else {
						metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, topic, "unparseable_envelope").Inc()
					}
				}
				_ = c.reader.CommitMessages(ctx, m)
				continue
			}

			msgCtx := consumeCtx
			if envelope.TraceID != "" {
				msgCtx = logging.WithTraceID(msgCtx, envelope.TraceID)
			}
			msgCtx = logging.WithCommentID(msgCtx, envelope.CommentID)
			msgCtx = logging.WithClientID(msgCtx, envelope.ClientID)

			c.handleMessage(msgCtx, &envelope, handler, topic)

			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
					"error", err,
					"topic", topic,
				)
			}
		}
	}()

	return nil
}

// handleMessage runs the handler with in-process retries and decides the
// message's fate: done, republished with a bumped receive count, or DLQ.
// The fetched message is always committed afterwards.
func (c *KafkaConsumer) handleMessage(ctx context.Context, envelope *models.QueueMessage, handler HandlerFunc, topic string) {
	err := c.processWithRetry(ctx, envelope, handler, topic)
	if err == nil {
		return
	}

	if retry.IsFatal(err) {
		c.logger.ErrorwCtx(ctx, "Permanent failure, routing to DLQ",
			"error", err,
			"topic", topic,
		)
		c.sendToDLQ(ctx, envelope, err, topic, "permanent_failure")
		return
	}

	if envelope.Delivery.ReceiveCount >= c.maxReceiveCount() {
		c.logger.ErrorwCtx(ctx, "Redelivery budget exhausted, routing to DLQ",
			"error", err,
			"receive_count", envelope.Delivery.ReceiveCount,
			"topic", topic,
		)
		c.sendToDLQ(ctx, envelope, err, topic, "max_receives_exceeded")
		return
	}

	next := envelope.NextDelivery(err)
	if pubErr := c.producer.Publish(ctx, topic, next); pubErr != nil {
		c.logger.ErrorwCtx(ctx, "Failed to republish message, routing to DLQ",
			"error", pubErr,
			"topic", topic,
		)
		c.sendToDLQ(ctx, envelope, err, topic, "republish_failed")
		return
	}

	metrics.RequeuedMessagesTotal.WithLabelValues(c.serviceName, topic).Inc()
	c.logger.WarnwCtx(ctx, "Message republished for redelivery",
		"receive_count", next.Delivery.ReceiveCount,
		"error", err,
		"topic", topic,
	)
}

func (c *KafkaConsumer) maxReceiveCount() int {
	if c.cfg.MaxReceiveCount > 0 {
		return c.cfg.MaxReceiveCount
	}
	return constants.DefaultMaxReceiveCount
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.producer != nil {
		if closeErr := c.producer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, envelope *models.QueueMessage, handler HandlerFunc, topic string) error {
	policy := retry.DefaultPolicy()

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, envelope)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, envelope *models.QueueMessage, originalErr error, sourceTopic, reason string) {
	if c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(ctx, "No DLQ configured, dropping message",
			"topic", sourceTopic,
			"error", originalErr,
		)
		return
	}

	dead := *envelope
	dead.Delivery.LastError = originalErr.Error()

	if err := c.producer.Publish(ctx, c.cfg.DLQTopic, &dead); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to publish to DLQ",
			"error", err,
			"dlq_topic", c.cfg.DLQTopic,
		)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", reason,
	)
}
