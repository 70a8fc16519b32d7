package classifier

import (
	"sort"
	"strings"

	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
)

// ApplyKeywordOverrides adjusts the LLM verdict with the client's
// keyword rules. All matches are case-insensitive substrings.
// An urgency keyword only ever raises urgency to high, never lowers it.
func ApplyKeywordOverrides(cls *comment.Classification, rules *clientconfig.ClassificationRules, text string) []string {
	if rules == nil {
		return nil
	}

	lower := strings.ToLower(text)
	var applied []string

	if cls.Urgency != "high" && matchesAny(lower, rules.UrgencyKeywords) {
		cls.Urgency = "high"
		applied = append(applied, "urgency_keyword")
	}

	if matchesAny(lower, rules.NegativeKeywords) {
		cls.Sentiment = "negative"
		applied = append(applied, "negative_keyword")
	} else if matchesAny(lower, rules.PositiveKeywords) {
		cls.Sentiment = "positive"
		applied = append(applied, "positive_keyword")
	}

	// Sorted so the first matching intent is deterministic.
	intents := make([]string, 0, len(rules.IntentKeywords))
	for intent := range rules.IntentKeywords {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	for _, intent := range intents {
		if matchesAny(lower, rules.IntentKeywords[intent]) {
			cls.Intent = strings.ToLower(intent)
			applied = append(applied, "intent_keyword:"+intent)
			break
		}
	}

	return applied
}

func matchesAny(lowerText string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}
