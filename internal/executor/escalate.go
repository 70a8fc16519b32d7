package executor

import (
	"context"

	"sentinel/internal/audit"
	"sentinel/internal/comment"
	"sentinel/internal/notify"
	"sentinel/internal/router"
)

const maxExcerptLen = 200

func (e *Executor) executeEscalate(ctx context.Context, c *comment.Comment, decision router.Decision) error {
	notifications, err := e.configs.Notifications(ctx, c.ClientID)
	if err != nil {
		return err
	}

	level := escalationLevel(c.Classification)

	if notifications.Escalation() {
		payload := notify.Escalation{
			ClientID:   c.ClientID,
			CommentID:  c.CommentID,
			Platform:   c.Platform,
			Level:      level,
			Reason:     decision.Reason,
			Confidence: c.Classification.Confidence,
			Excerpt:    excerpt(c.Text),
			Permalink:  c.Permalink,
			Channel:    notifications.Channel,
		}

		// Escalation always succeeds locally; a dead webhook must not
		// keep the comment bouncing through the queue.
		if err := e.notifier.SendEscalation(ctx, notifications.WebhookURL, payload); err != nil {
			e.logger.ErrorwCtx(ctx, "Escalation webhook failed",
				"error", err,
				"level", level,
			)
		}
	}

	return e.finalize(ctx, c, "escalated", "", audit.ActionCommentEscalated, map[string]interface{}{
		"level":      level,
		"reason":     decision.Reason,
		"confidence": c.Classification.Confidence,
	})
}

// escalationLevel grades the severity of an escalated comment.
func escalationLevel(cls *comment.Classification) string {
	switch {
	case cls.ToxicityScore >= 8:
		return "critical"
	case cls.Urgency == "high" && cls.Sentiment == "negative":
		return "high"
	case cls.Urgency == "high" || cls.Sentiment == "negative":
		return "medium"
	default:
		return "low"
	}
}

func excerpt(text string) string {
	return truncateRunes(text, maxExcerptLen)
}
