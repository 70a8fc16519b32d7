package executor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
)

func TestSelectTemplate(t *testing.T) {
	templates := &clientconfig.ResponseTemplates{
		Templates: map[string]string{
			"question": "Thanks for asking, {name}!",
			"positive": "Glad you liked it!",
			"default":  "Thanks for reaching out.",
		},
	}

	tests := []struct {
		name string
		cls  comment.Classification
		want string
	}{
		{
			name: "intent wins",
			cls:  comment.Classification{Intent: "question", Sentiment: "positive", Urgency: "low"},
			want: "Thanks for asking, {name}!",
		},
		{
			name: "falls back to sentiment",
			cls:  comment.Classification{Intent: "compliment", Sentiment: "positive", Urgency: "low"},
			want: "Glad you liked it!",
		},
		{
			name: "falls back to default",
			cls:  comment.Classification{Intent: "general", Sentiment: "neutral", Urgency: "low"},
			want: "Thanks for reaching out.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectTemplate(templates, &tt.cls))
		})
	}
}

func TestSelectTemplateNoMatch(t *testing.T) {
	cls := &comment.Classification{Intent: "general", Sentiment: "neutral", Urgency: "low"}

	assert.Empty(t, selectTemplate(nil, cls))
	assert.Empty(t, selectTemplate(&clientconfig.ResponseTemplates{}, cls))

	onlyQuestions := &clientconfig.ResponseTemplates{
		Templates: map[string]string{"question": "Hi!"},
	}
	assert.Empty(t, selectTemplate(onlyQuestions, cls))
}

func TestRenderReply(t *testing.T) {
	c := &comment.Comment{
		AuthorName: "Jane Doe",
		Platform:   "instagram",
	}
	templates := &clientconfig.ResponseTemplates{MaxReplyLength: 500}

	got := renderReply("Hi {name}, thanks for your {platform} comment!", c, templates)
	assert.Equal(t, "Hi Jane, thanks for your instagram comment!", got)
}

func TestRenderReplyMissingAuthor(t *testing.T) {
	c := &comment.Comment{Platform: "facebook"}
	templates := &clientconfig.ResponseTemplates{MaxReplyLength: 500}

	got := renderReply("Hi {name}!", c, templates)
	assert.Equal(t, "Hi there!", got)
}

func TestRenderReplyStripsUnknownPlaceholders(t *testing.T) {
	c := &comment.Comment{AuthorName: "Jane", Platform: "facebook"}
	templates := &clientconfig.ResponseTemplates{MaxReplyLength: 500}

	got := renderReply("Hi {name}, use code {promo_code} today", c, templates)
	assert.NotContains(t, got, "{")
	assert.NotContains(t, got, "promo_code")
}

func TestRenderReplyTruncates(t *testing.T) {
	c := &comment.Comment{AuthorName: "Jane", Platform: "facebook"}
	templates := &clientconfig.ResponseTemplates{MaxReplyLength: 20}

	got := renderReply(strings.Repeat("thanks ", 20), c, templates)
	assert.LessOrEqual(t, len(got), 20)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestRenderReplyTruncatesOnRuneBoundary(t *testing.T) {
	c := &comment.Comment{AuthorName: "Jane", Platform: "facebook"}
	templates := &clientconfig.ResponseTemplates{MaxReplyLength: 10}

	got := renderReply(strings.Repeat("héllo ", 10), c, templates)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 10)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestRenderReplyTinyLimitDoesNotPanic(t *testing.T) {
	c := &comment.Comment{AuthorName: "Jane", Platform: "facebook"}

	for _, maxLen := range []int{1, 2, 3} {
		templates := &clientconfig.ResponseTemplates{MaxReplyLength: maxLen}
		got := renderReply("Thanks {name}!", c, templates)
		assert.True(t, utf8.ValidString(got))
		assert.LessOrEqual(t, utf8.RuneCountInString(got), maxLen)
	}
}

func TestRenderReplyAppendsSignature(t *testing.T) {
	c := &comment.Comment{AuthorName: "Jane", Platform: "facebook"}
	templates := &clientconfig.ResponseTemplates{
		MaxReplyLength: 500,
		Signature:      "- The Acme Team",
	}

	got := renderReply("Thanks {name}!", c, templates)
	assert.Equal(t, "Thanks Jane!\n\n- The Acme Team", got)
}
