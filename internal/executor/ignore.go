package executor

import (
	"context"

	"sentinel/internal/audit"
	"sentinel/internal/comment"
	"sentinel/internal/router"
)

func (e *Executor) executeIgnore(ctx context.Context, c *comment.Comment, decision router.Decision) error {
	details := map[string]interface{}{
		"reason": decision.Reason,
	}
	if c.Classification != nil {
		details["sentiment"] = c.Classification.Sentiment
		details["confidence"] = c.Classification.Confidence
	}

	return e.finalize(ctx, c, "ignored", "", audit.ActionCommentIgnored, details)
}
