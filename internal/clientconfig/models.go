package clientconfig

import (
	"time"

	"sentinel/internal/constants"
)

// Config types stored per client. One document per (client_id, config_type).
const (
	TypeMetaAPI             = "meta_api"
	TypeResponseTemplates   = "response_templates"
	TypeClassificationRules = "classification_rules"
	TypeModerationRules     = "moderation_rules"
	TypeNotifications       = "notifications"
	TypeIngestionState      = "ingestion_state"
)

type ClientConfig struct {
	ID         string                 `json:"id" bson:"_id,omitempty"`
	ClientID   string                 `json:"client_id" bson:"client_id"`
	ConfigType string                 `json:"config_type" bson:"config_type"`
	Active     bool                   `json:"active" bson:"active"`
	Data       map[string]interface{} `json:"data" bson:"data"`
	CreatedAt  time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" bson:"updated_at"`
}

// MetaAPI holds the credentials and asset IDs for a client's Meta
// presence. A client with Enabled false is skipped by ingestion.
type MetaAPI struct {
	PageID      string `json:"page_id"`
	IGAccountID string `json:"ig_account_id"`
	AdAccountID string `json:"ad_account_id"`
	AccessToken string `json:"access_token"`
	Enabled     bool   `json:"enabled"`
}

// ClassificationRules tunes the classifier per client. Keyword matches
// are case-insensitive substrings.
type ClassificationRules struct {
	BusinessContext  string              `json:"business_context"`
	AutoReplyEnabled *bool               `json:"auto_reply_enabled"`
	MinConfidence    int                 `json:"min_confidence"`
	UrgencyKeywords  []string            `json:"urgency_keywords"`
	PositiveKeywords []string            `json:"positive_keywords"`
	NegativeKeywords []string            `json:"negative_keywords"`
	IntentKeywords   map[string][]string `json:"intent_keywords"`
	SkipExpressions  []string            `json:"skip_expressions"`
}

// AutoReply defaults to true when the client never set it.
func (r *ClassificationRules) AutoReply() bool {
	if r.AutoReplyEnabled == nil {
		return true
	}
	return *r.AutoReplyEnabled
}

type ModerationRules struct {
	ToxicityThreshold       int      `json:"toxicity_threshold"`
	BannedKeywords          []string `json:"banned_keywords"`
	SpamConfidenceThreshold int      `json:"spam_confidence_threshold"`
}

// ResponseTemplates maps intent, sentiment and urgency values to reply
// bodies. Lookup falls through intent -> sentiment -> urgency -> "default".
type ResponseTemplates struct {
	Templates      map[string]string `json:"templates"`
	Signature      string            `json:"signature"`
	MaxReplyLength int               `json:"max_reply_length"`
}

type Notifications struct {
	WebhookURL        string `json:"webhook_url"`
	Channel           string `json:"channel"`
	EscalationEnabled *bool  `json:"escalation_enabled"`
}

func (n *Notifications) Escalation() bool {
	if n.EscalationEnabled == nil {
		return true
	}
	return *n.EscalationEnabled
}

// IngestionState carries the per-client poll watermark.
type IngestionState struct {
	LastPolledAt time.Time `json:"last_polled_at"`
}

func applyClassificationDefaults(r *ClassificationRules) {
	if r.MinConfidence <= 0 {
		r.MinConfidence = constants.DefaultMinConfidence
	}
}

func applyModerationDefaults(r *ModerationRules) {
	if r.ToxicityThreshold <= 0 {
		r.ToxicityThreshold = constants.DefaultToxicityThreshold
	}
	if r.SpamConfidenceThreshold <= 0 {
		r.SpamConfidenceThreshold = constants.DefaultSpamConfidence
	}
}

func applyTemplateDefaults(t *ResponseTemplates) {
	if t.MaxReplyLength <= 0 {
		t.MaxReplyLength = constants.DefaultMaxReplyLength
	}
}
