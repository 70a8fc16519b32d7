package executor

import (
	"context"

	"sentinel/internal/audit"
	"sentinel/internal/comment"
	"sentinel/internal/router"
)

func (e *Executor) executeReply(ctx context.Context, c *comment.Comment, decision router.Decision) error {
	templates, err := e.configs.ResponseTemplates(ctx, c.ClientID)
	if err != nil {
		return err
	}

	template := selectTemplate(templates, c.Classification)
	if template == "" {
		// Nothing configured to say; fall through to a terminal ignore
		// rather than blocking the queue.
		e.logger.WarnwCtx(ctx, "No response template matched, ignoring comment",
			"intent", c.Classification.Intent,
			"sentiment", c.Classification.Sentiment,
		)
		return e.finalize(ctx, c, "ignored", "", audit.ActionCommentIgnored, map[string]interface{}{
			"reason": "no_template",
		})
	}

	reply := renderReply(template, c, templates)

	creds, err := e.configs.MetaAPI(ctx, c.ClientID)
	if err != nil {
		return err
	}

	if err := e.social.Reply(ctx, creds, c.Platform, c.CommentID, reply); err != nil {
		return err
	}

	e.logger.InfowCtx(ctx, "Reply posted", "reply_length", len(reply))

	return e.finalize(ctx, c, "replied", reply, audit.ActionReplySent, map[string]interface{}{
		"reply_message": reply,
		"reason":        decision.Reason,
		"confidence":    c.Classification.Confidence,
	})
}
