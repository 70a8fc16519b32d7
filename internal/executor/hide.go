package executor

import (
	"context"
	"strings"

	"sentinel/internal/audit"
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/router"
)

func (e *Executor) executeHide(ctx context.Context, c *comment.Comment, decision router.Decision) error {
	moderation, err := e.configs.ModerationRules(ctx, c.ClientID)
	if err != nil {
		return err
	}

	creds, err := e.configs.MetaAPI(ctx, c.ClientID)
	if err != nil {
		return err
	}

	if err := e.social.Hide(ctx, creds, c.Platform, c.CommentID); err != nil {
		return err
	}

	reason, matchedKeyword := hideReason(c, moderation)
	e.logger.InfowCtx(ctx, "Comment hidden", "reason", reason)

	details := map[string]interface{}{
		"reason":         reason,
		"toxicity_score": c.Classification.ToxicityScore,
	}
	if matchedKeyword != "" {
		details["banned_keyword"] = matchedKeyword
	}

	return e.finalize(ctx, c, "hidden", "", audit.ActionCommentHidden, details)
}

// hideReason explains why the comment was hidden, preferring a banned
// keyword match over the bare toxicity score.
func hideReason(c *comment.Comment, moderation *clientconfig.ModerationRules) (string, string) {
	lower := strings.ToLower(c.Text)
	for _, kw := range moderation.BannedKeywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return "banned_keyword", kw
		}
	}

	if c.Classification != nil && c.Classification.ToxicityScore >= moderation.ToxicityThreshold {
		return "toxicity_threshold", ""
	}

	if c.Classification != nil && c.Classification.Intent == "spam" &&
		c.Classification.Confidence >= moderation.SpamConfidenceThreshold {
		return "spam", ""
	}

	return "policy", ""
}
