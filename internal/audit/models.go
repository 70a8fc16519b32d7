package audit

import "time"

// Action types recorded in the audit trail.
const (
	ActionClassificationCompleted = "classification_completed"
	ActionReplySent               = "reply_sent"
	ActionCommentHidden           = "comment_hidden"
	ActionCommentEscalated        = "comment_escalated"
	ActionCommentIgnored          = "comment_ignored"
	ActionFailed                  = "action_failed"
)

type LogEntry struct {
	LogID      string                 `json:"log_id"`
	ClientID   string                 `json:"client_id"`
	CommentID  string                 `json:"comment_id,omitempty"`
	ActionType string                 `json:"action_type"`
	Details    map[string]interface{} `json:"details"`
	CreatedAt  time.Time              `json:"created_at"`
}

type QueryFilter struct {
	ClientID   string
	CommentID  string
	ActionType string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}
