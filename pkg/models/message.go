package models

import (
	"time"

	"github.com/google/uuid"
)

const ActionClassifyComment = "classify_comment"

// QueueMessage is the envelope published to the comment-events topic.
// One message references exactly one pending comment.
type QueueMessage struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	CommentID  string    `json:"comment_id"`
	ClientID   string    `json:"client_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Delivery   Delivery  `json:"delivery"`
}

// Delivery carries redelivery bookkeeping. ReceiveCount starts at 1 on
// the first delivery and is incremented on every republish.
type Delivery struct {
	ReceiveCount int    `json:"receive_count"`
	LastError    string `json:"last_error,omitempty"`
}

// NewClassifyMessage builds the envelope for a freshly ingested comment.
func NewClassifyMessage(commentID, clientID, traceID string) *QueueMessage {
	return &QueueMessage{
		ID:         uuid.NewString(),
		Action:     ActionClassifyComment,
		CommentID:  commentID,
		ClientID:   clientID,
		TraceID:    traceID,
		EnqueuedAt: time.Now().UTC(),
		Delivery:   Delivery{ReceiveCount: 1},
	}
}

// NextDelivery returns a copy of the message prepared for republish after
// a retryable failure.
func (m *QueueMessage) NextDelivery(lastErr error) *QueueMessage {
	next := *m
	next.Delivery.ReceiveCount++
	if lastErr != nil {
		next.Delivery.LastError = lastErr.Error()
	}
	return &next
}
