package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"sentinel/internal/comment"
)

var (
	validSentiments = map[string]bool{"positive": true, "negative": true, "neutral": true}
	validUrgencies  = map[string]bool{"low": true, "medium": true, "high": true}
	validIntents    = map[string]bool{"question": true, "complaint": true, "compliment": true, "spam": true, "general": true}
	validActions    = map[string]bool{"reply": true, "hide": true, "escalate": true, "ignore": true}
)

type llmResponse struct {
	Sentiment        string `json:"sentiment"`
	Urgency          string `json:"urgency"`
	Intent           string `json:"intent"`
	ToxicityScore    *int   `json:"toxicity_score"`
	RequiresResponse *bool  `json:"requires_response"`
	SuggestedAction  string `json:"suggested_action"`
	Confidence       *int   `json:"confidence"`
}

// ParseClassification turns a raw model completion into a validated
// Classification. Markdown fences are stripped and malformed JSON goes
// through a repair pass before parsing fails.
func ParseClassification(raw, model string) (*comment.Classification, error) {
	cleaned := stripFences(raw)

	var resp llmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to parse llm response: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse repaired llm response: %w", err)
		}
	}

	if err := validateResponse(&resp); err != nil {
		return nil, err
	}

	return &comment.Classification{
		Sentiment:        strings.ToLower(resp.Sentiment),
		Urgency:          strings.ToLower(resp.Urgency),
		Intent:           strings.ToLower(resp.Intent),
		ToxicityScore:    *resp.ToxicityScore,
		RequiresResponse: *resp.RequiresResponse,
		SuggestedAction:  strings.ToLower(resp.SuggestedAction),
		Confidence:       *resp.Confidence,
		Model:            model,
		ClassifiedAt:     time.Now().UTC(),
	}, nil
}

func validateResponse(resp *llmResponse) error {
	if !validSentiments[strings.ToLower(resp.Sentiment)] {
		return fmt.Errorf("invalid sentiment: %q", resp.Sentiment)
	}
	if !validUrgencies[strings.ToLower(resp.Urgency)] {
		return fmt.Errorf("invalid urgency: %q", resp.Urgency)
	}
	if !validIntents[strings.ToLower(resp.Intent)] {
		return fmt.Errorf("invalid intent: %q", resp.Intent)
	}
	if !validActions[strings.ToLower(resp.SuggestedAction)] {
		return fmt.Errorf("invalid suggested_action: %q", resp.SuggestedAction)
	}
	if resp.ToxicityScore == nil {
		return fmt.Errorf("missing toxicity_score")
	}
	if *resp.ToxicityScore < 0 || *resp.ToxicityScore > 10 {
		return fmt.Errorf("toxicity_score out of range: %d", *resp.ToxicityScore)
	}
	if resp.Confidence == nil {
		return fmt.Errorf("missing confidence")
	}
	if *resp.Confidence < 0 || *resp.Confidence > 100 {
		return fmt.Errorf("confidence out of range: %d", *resp.Confidence)
	}
	if resp.RequiresResponse == nil {
		return fmt.Errorf("missing requires_response")
	}
	return nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
