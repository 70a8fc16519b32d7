package broker

import (
	"context"

	"sentinel/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg *models.QueueMessage) error
	Close() error
}

type Consumer interface {
	// Consume starts a background consume loop and returns immediately.
	// The loop stops when ctx is canceled; Close waits for it to drain.
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one envelope. A nil return commits the message.
// A retry.FatalError routes to the DLQ immediately; any other error is
// retried in process and then republished with an incremented receive
// count until the redelivery budget is exhausted.
type HandlerFunc func(ctx context.Context, msg *models.QueueMessage) error
