package router

import (
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
)

// Action is the closed set of moderation outcomes.
type Action string

const (
	ActionReply    Action = "reply"
	ActionHide     Action = "hide"
	ActionEscalate Action = "escalate"
	ActionIgnore   Action = "ignore"
)

// Decision carries the chosen action and the rule that produced it.
type Decision struct {
	Action Action
	Reason string
}

// Decide maps a classification onto an action. Pure and deterministic:
// rules are evaluated in priority order and the first match wins.
//
//	1. toxicity at or above the client threshold hides the comment
//	2. negative sentiment with high urgency escalates
//	3. a response-worthy comment with enough confidence gets a reply,
//	   when the client allows auto-replies
//	4. everything else is ignored
func Decide(cls *comment.Classification, rules *clientconfig.ClassificationRules, moderation *clientconfig.ModerationRules) Decision {
	if cls.ToxicityScore >= moderation.ToxicityThreshold {
		return Decision{Action: ActionHide, Reason: "toxicity_threshold"}
	}

	if cls.Sentiment == "negative" && cls.Urgency == "high" {
		return Decision{Action: ActionEscalate, Reason: "negative_high_urgency"}
	}

	if cls.RequiresResponse && rules.AutoReply() && cls.Confidence >= rules.MinConfidence {
		return Decision{Action: ActionReply, Reason: "requires_response"}
	}

	return Decision{Action: ActionIgnore, Reason: "no_rule_matched"}
}
