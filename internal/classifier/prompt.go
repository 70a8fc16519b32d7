package classifier

import (
	"fmt"
	"strings"

	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
)

const promptTemplate = `You are a social media comment moderation assistant.%s

Analyze the following %s comment and respond with a single JSON object,
no markdown and no commentary.

Comment:
"""
%s
"""

Respond with exactly this JSON structure:
{
  "sentiment": "positive" | "negative" | "neutral",
  "urgency": "low" | "medium" | "high",
  "intent": "question" | "complaint" | "compliment" | "spam" | "general",
  "toxicity_score": <integer 0-10>,
  "requires_response": <boolean>,
  "suggested_action": "reply" | "hide" | "escalate" | "ignore",
  "confidence": <integer 0-100>
}`

// BuildPrompt renders the classification prompt for one comment,
// folding in the client's business context when configured.
func BuildPrompt(c *comment.Comment, rules *clientconfig.ClassificationRules) string {
	context := ""
	if rules != nil && rules.BusinessContext != "" {
		context = fmt.Sprintf("\nBusiness context: %s", strings.TrimSpace(rules.BusinessContext))
	}
	return fmt.Sprintf(promptTemplate, context, c.Platform, c.Text)
}
