package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/audit"
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/executor"
	"sentinel/internal/logger"
	"sentinel/internal/notify"
	"sentinel/pkg/cel"
	"sentinel/pkg/errors"
	"sentinel/pkg/models"
	"sentinel/pkg/retry"
)

type fakeCommentRepo struct {
	comments  map[string]*comment.Comment
	processed map[string]string
	failed    map[string]string
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{
		comments:  make(map[string]*comment.Comment),
		processed: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (r *fakeCommentRepo) InsertIfAbsent(ctx context.Context, c *comment.Comment) (bool, error) {
	return true, nil
}

func (r *fakeCommentRepo) GetByID(ctx context.Context, commentID string) (*comment.Comment, error) {
	c, ok := r.comments[commentID]
	if !ok {
		return nil, errors.ErrNotFound.WithDetail("comment_id", commentID)
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCommentRepo) AttachClassification(ctx context.Context, commentID string, cls *comment.Classification) error {
	c, ok := r.comments[commentID]
	if !ok {
		return fmt.Errorf("comment %s not found", commentID)
	}
	c.Classification = cls
	c.Status = comment.StatusClassified
	return nil
}

func (r *fakeCommentRepo) MarkProcessed(ctx context.Context, commentID, actionTaken, replyMessage string) error {
	r.processed[commentID] = actionTaken
	if c, ok := r.comments[commentID]; ok {
		c.Status = comment.StatusProcessed
		c.ActionTaken = actionTaken
	}
	return nil
}

func (r *fakeCommentRepo) MarkFailed(ctx context.Context, commentID, reason string) error {
	r.failed[commentID] = reason
	if c, ok := r.comments[commentID]; ok {
		c.Status = comment.StatusFailed
	}
	return nil
}

func (r *fakeCommentRepo) List(ctx context.Context, filter comment.ListFilter) ([]comment.Comment, int64, error) {
	return nil, 0, nil
}

func (r *fakeCommentRepo) CountByStatus(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return nil, nil
}

func (r *fakeCommentRepo) CountByAction(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return nil, nil
}

func (r *fakeCommentRepo) CountBySentiment(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return nil, nil
}

func (r *fakeCommentRepo) CountRequiringResponse(ctx context.Context, clientID string, since time.Time) (int64, error) {
	return 0, nil
}

type fakeAuditRepo struct {
	entries []audit.LogEntry
}

func (r *fakeAuditRepo) Record(ctx context.Context, entry audit.LogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.LogEntry, error) {
	return nil, nil
}

func (r *fakeAuditRepo) CountByActionType(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	return nil, nil
}

func (r *fakeAuditRepo) actionTypes() []string {
	var types []string
	for _, e := range r.entries {
		types = append(types, e.ActionType)
	}
	return types
}

type fakeConfigs struct {
	rules      *clientconfig.ClassificationRules
	moderation *clientconfig.ModerationRules
}

func (f *fakeConfigs) ClassificationRules(ctx context.Context, clientID string) (*clientconfig.ClassificationRules, error) {
	if f.rules != nil {
		return f.rules, nil
	}
	return &clientconfig.ClassificationRules{MinConfidence: 70}, nil
}

func (f *fakeConfigs) ModerationRules(ctx context.Context, clientID string) (*clientconfig.ModerationRules, error) {
	if f.moderation != nil {
		return f.moderation, nil
	}
	return &clientconfig.ModerationRules{ToxicityThreshold: 7, SpamConfidenceThreshold: 80}, nil
}

func (f *fakeConfigs) MetaAPI(ctx context.Context, clientID string) (*clientconfig.MetaAPI, error) {
	return &clientconfig.MetaAPI{PageID: "page-1", AccessToken: "token", Enabled: true}, nil
}

func (f *fakeConfigs) ResponseTemplates(ctx context.Context, clientID string) (*clientconfig.ResponseTemplates, error) {
	return &clientconfig.ResponseTemplates{
		Templates:      map[string]string{"default": "Thanks {name}!"},
		MaxReplyLength: 500,
	}, nil
}

func (f *fakeConfigs) Notifications(ctx context.Context, clientID string) (*clientconfig.Notifications, error) {
	return &clientconfig.Notifications{WebhookURL: "https://hooks.example.com/x"}, nil
}

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (l *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	return l.response, nil
}

func (l *fakeLLM) ModelName() string { return "fake-model" }

type fakeSocial struct {
	replies []string
	hides   []string
}

func (s *fakeSocial) Reply(ctx context.Context, creds *clientconfig.MetaAPI, platform, commentID, message string) error {
	s.replies = append(s.replies, commentID)
	return nil
}

func (s *fakeSocial) Hide(ctx context.Context, creds *clientconfig.MetaAPI, platform, commentID string) error {
	s.hides = append(s.hides, commentID)
	return nil
}

type fakeNotifier struct {
	sent []notify.Escalation
}

func (n *fakeNotifier) SendEscalation(ctx context.Context, webhookURL string, payload notify.Escalation) error {
	n.sent = append(n.sent, payload)
	return nil
}

type serviceFixture struct {
	service  *Service
	comments *fakeCommentRepo
	configs  *fakeConfigs
	llm      *fakeLLM
	social   *fakeSocial
	notifier *fakeNotifier
	audit    *fakeAuditRepo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	f := &serviceFixture{
		comments: newFakeCommentRepo(),
		configs:  &fakeConfigs{},
		llm:      &fakeLLM{},
		social:   &fakeSocial{},
		notifier: &fakeNotifier{},
		audit:    &fakeAuditRepo{},
	}

	exec := executor.New(f.comments, f.configs, f.social, f.notifier, f.audit, logger.NopLogger())
	f.service = NewService(f.comments, f.configs, evaluator, f.llm, exec, f.audit, 3, logger.NopLogger())
	return f
}

func (f *serviceFixture) addComment(c *comment.Comment) {
	f.comments.comments[c.CommentID] = c
}

func pendingComment() *comment.Comment {
	return &comment.Comment{
		CommentID:   "c-1",
		ClientID:    "client-1",
		Platform:    "facebook",
		PostID:      "p-1",
		AuthorID:    "u-1",
		AuthorName:  "Jane Doe",
		Text:        "where is my order?",
		Status:      comment.StatusPending,
		CreatedTime: time.Now().UTC(),
	}
}

func classifyMessage() *models.QueueMessage {
	return models.NewClassifyMessage("c-1", "client-1", "trace-1")
}

func llmJSON(sentiment, urgency, intent string, toxicity int, requiresResponse bool, action string, confidence int) string {
	return fmt.Sprintf(
		`{"sentiment":%q,"urgency":%q,"intent":%q,"toxicity_score":%d,"requires_response":%t,"suggested_action":%q,"confidence":%d}`,
		sentiment, urgency, intent, toxicity, requiresResponse, action, confidence,
	)
}

func TestHandleMessageClassifiesAndReplies(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.response = llmJSON("neutral", "medium", "question", 1, true, "reply", 90)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	assert.Equal(t, 1, f.llm.calls)
	assert.Equal(t, []string{"c-1"}, f.social.replies)
	assert.Equal(t, "replied", f.comments.processed["c-1"])

	stored := f.comments.comments["c-1"]
	require.NotNil(t, stored.Classification)
	assert.Equal(t, "question", stored.Classification.Intent)
	assert.Equal(t, "fake-model", stored.Classification.Model)

	assert.Equal(t, []string{audit.ActionClassificationCompleted, audit.ActionReplySent}, f.audit.actionTypes())
}

func TestHandleMessageHidesToxicComment(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.response = llmJSON("negative", "low", "general", 9, false, "hide", 95)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	assert.Equal(t, []string{"c-1"}, f.social.hides)
	assert.Equal(t, "hidden", f.comments.processed["c-1"])
}

func TestHandleMessageEscalatesUrgentNegative(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.response = llmJSON("negative", "high", "complaint", 3, true, "escalate", 85)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "high", f.notifier.sent[0].Level)
	assert.Equal(t, "escalated", f.comments.processed["c-1"])
}

func TestHandleMessageSkipExpressionBypassesLLM(t *testing.T) {
	f := newServiceFixture(t)
	f.configs.rules = &clientconfig.ClassificationRules{
		MinConfidence:   70,
		SkipExpressions: []string{`author.name == "Jane Doe"`},
	}
	f.addComment(pendingComment())

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	assert.Zero(t, f.llm.calls)
	assert.Equal(t, "ignored", f.comments.processed["c-1"])
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionCommentIgnored, f.audit.entries[0].ActionType)
	assert.Equal(t, "skip_expression:0", f.audit.entries[0].Details["reason"])
}

func TestHandleMessageBrokenSkipExpressionIsIgnored(t *testing.T) {
	f := newServiceFixture(t)
	f.configs.rules = &clientconfig.ClassificationRules{
		MinConfidence:   70,
		SkipExpressions: []string{`this is not CEL`},
	}
	f.addComment(pendingComment())
	f.llm.response = llmJSON("neutral", "low", "general", 0, false, "ignore", 60)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	// Classification still ran despite the unusable expression.
	assert.Equal(t, 1, f.llm.calls)
}

func TestHandleMessageKeywordOverridesChangeRouting(t *testing.T) {
	f := newServiceFixture(t)
	f.configs.rules = &clientconfig.ClassificationRules{
		MinConfidence:    70,
		UrgencyKeywords:  []string{"order"},
		NegativeKeywords: []string{"where is"},
	}
	f.addComment(pendingComment())
	// Model says calm and neutral; keywords force negative + high urgency,
	// which escalates instead of replying.
	f.llm.response = llmJSON("neutral", "low", "question", 1, true, "reply", 90)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	assert.Equal(t, "escalated", f.comments.processed["c-1"])
}

func TestHandleMessageUnknownActionDropped(t *testing.T) {
	f := newServiceFixture(t)
	msg := classifyMessage()
	msg.Action = "resize_image"

	err := f.service.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Zero(t, f.llm.calls)
}

func TestHandleMessageMissingCommentIsRetryable(t *testing.T) {
	f := newServiceFixture(t)

	// The repository's not-found carries a fatal marker; a lagging read
	// must still get the redelivery grace window instead of an immediate
	// dead-letter.
	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.Error(t, err)
	assert.False(t, retry.IsFatal(err))
	assert.Empty(t, f.comments.failed)
}

func TestHandleMessageUnusableLLMOutputIsRetryable(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.response = "I am sorry, I cannot help with that."

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.Error(t, err)
	assert.False(t, retry.IsFatal(err))
}

func TestHandleMessageTerminalFailureRecorded(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.err = fmt.Errorf("llm unavailable")

	msg := classifyMessage()
	msg.Delivery.ReceiveCount = 3

	err := f.service.HandleMessage(context.Background(), msg)
	require.Error(t, err)

	assert.NotEmpty(t, f.comments.failed["c-1"])
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionFailed, f.audit.entries[0].ActionType)
	assert.Equal(t, 3, f.audit.entries[0].Details["receive_count"])
}

func TestHandleMessageTerminalFailureRecordedOnce(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.err = fmt.Errorf("llm unavailable")

	msg := classifyMessage()
	msg.Delivery.ReceiveCount = 3

	// The broker retries the handler in process on the final delivery;
	// the terminal record must not multiply across attempts.
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1.0,
		MaxElapsedTime:  time.Second,
	}
	err := retry.Retry(context.Background(), policy, func() error {
		return f.service.HandleMessage(context.Background(), msg)
	})
	require.Error(t, err)

	failedEntries := 0
	for _, e := range f.audit.entries {
		if e.ActionType == audit.ActionFailed {
			failedEntries++
		}
	}
	assert.Equal(t, 1, failedEntries)
	assert.NotEmpty(t, f.comments.failed["c-1"])
}

func TestHandleMessageFatalFailureRecordedImmediately(t *testing.T) {
	f := newServiceFixture(t)
	f.addComment(pendingComment())
	f.llm.err = retry.NewFatalError(fmt.Errorf("invalid api key"))

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
	assert.NotEmpty(t, f.comments.failed["c-1"])
}

func TestHandleMessageRedeliveryOfProcessedComment(t *testing.T) {
	f := newServiceFixture(t)
	c := pendingComment()
	c.Status = comment.StatusProcessed
	c.ActionTaken = "replied"
	f.addComment(c)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)
	assert.Zero(t, f.llm.calls)
	assert.Empty(t, f.audit.entries)
}

func TestHandleMessageRedeliveryResumesAfterClassification(t *testing.T) {
	f := newServiceFixture(t)
	c := pendingComment()
	c.Status = comment.StatusClassified
	c.Classification = &comment.Classification{
		Sentiment:        "neutral",
		Urgency:          "low",
		Intent:           "question",
		RequiresResponse: true,
		Confidence:       90,
		Model:            "fake-model",
	}
	f.addComment(c)

	err := f.service.HandleMessage(context.Background(), classifyMessage())
	require.NoError(t, err)

	// No second LLM call; routing and the action still run.
	assert.Zero(t, f.llm.calls)
	assert.Equal(t, "replied", f.comments.processed["c-1"])
}
