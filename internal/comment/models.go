package comment

import "time"

// Comment lifecycle statuses. A comment moves pending -> classified ->
// processed, or to failed from either intermediate state.
const (
	StatusPending    = "pending"
	StatusClassified = "classified"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// Classification is the structured verdict attached to a comment after
// the LLM pass and keyword overrides.
type Classification struct {
	Sentiment        string    `json:"sentiment" bson:"sentiment"`
	Urgency          string    `json:"urgency" bson:"urgency"`
	Intent           string    `json:"intent" bson:"intent"`
	ToxicityScore    int       `json:"toxicity_score" bson:"toxicity_score"`
	RequiresResponse bool      `json:"requires_response" bson:"requires_response"`
	SuggestedAction  string    `json:"suggested_action" bson:"suggested_action"`
	Confidence       int       `json:"confidence" bson:"confidence"`
	Model            string    `json:"model" bson:"model"`
	ClassifiedAt     time.Time `json:"classified_at" bson:"classified_at"`
}

type Comment struct {
	CommentID      string          `json:"comment_id" bson:"_id"`
	ClientID       string          `json:"client_id" bson:"client_id"`
	Platform       string          `json:"platform" bson:"platform"`
	PostID         string          `json:"post_id" bson:"post_id"`
	AuthorID       string          `json:"author_id" bson:"author_id"`
	AuthorName     string          `json:"author_name" bson:"author_name"`
	Text           string          `json:"text" bson:"text"`
	Permalink      string          `json:"permalink,omitempty" bson:"permalink,omitempty"`
	LikeCount      int             `json:"like_count" bson:"like_count"`
	ReplyCount     int             `json:"reply_count" bson:"reply_count"`
	CreatedTime    time.Time       `json:"created_time" bson:"created_time"`
	Status         string          `json:"status" bson:"status"`
	ActionTaken    string          `json:"action_taken,omitempty" bson:"action_taken,omitempty"`
	ReplyMessage   string          `json:"reply_message,omitempty" bson:"reply_message,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	Classification *Classification `json:"classification,omitempty" bson:"classification,omitempty"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}
