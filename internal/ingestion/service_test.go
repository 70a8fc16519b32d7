package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/social"
	"sentinel/pkg/models"
)

type fakeConfigs struct {
	clients    []string
	creds      map[string]*clientconfig.MetaAPI
	watermarks map[string]time.Time
	setErr     error
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{
		clients: []string{"client-1"},
		creds: map[string]*clientconfig.MetaAPI{
			"client-1": {PageID: "page-1", AccessToken: "token", Enabled: true},
		},
		watermarks: make(map[string]time.Time),
	}
}

func (f *fakeConfigs) ListActiveMetaClients(ctx context.Context) ([]string, error) {
	return f.clients, nil
}

func (f *fakeConfigs) MetaAPI(ctx context.Context, clientID string) (*clientconfig.MetaAPI, error) {
	creds, ok := f.creds[clientID]
	if !ok {
		return nil, fmt.Errorf("no creds for %s", clientID)
	}
	return creds, nil
}

func (f *fakeConfigs) Watermark(ctx context.Context, clientID string) (time.Time, error) {
	return f.watermarks[clientID], nil
}

func (f *fakeConfigs) SetWatermark(ctx context.Context, clientID string, t time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.watermarks[clientID] = t
	return nil
}

type fakeFetcher struct {
	page      []social.RawComment
	instagram []social.RawComment
	ads       []social.RawComment
	pageErr   error
	igErr     error
	adsErr    error
	lastSince time.Time
}

func (f *fakeFetcher) FetchPageComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]social.RawComment, error) {
	f.lastSince = since
	return f.page, f.pageErr
}

func (f *fakeFetcher) FetchInstagramComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]social.RawComment, error) {
	return f.instagram, f.igErr
}

func (f *fakeFetcher) FetchAdComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]social.RawComment, error) {
	return f.ads, f.adsErr
}

type fakeCommentRepo struct {
	inserted  []comment.Comment
	stored    map[string]*comment.Comment
	insertErr error
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{stored: make(map[string]*comment.Comment)}
}

func (r *fakeCommentRepo) InsertIfAbsent(ctx context.Context, c *comment.Comment) (bool, error) {
	if r.insertErr != nil {
		return false, r.insertErr
	}
	if _, ok := r.stored[c.CommentID]; ok {
		return false, nil
	}
	cp := *c
	r.stored[c.CommentID] = &cp
	r.inserted = append(r.inserted, *c)
	return true, nil
}

func (r *fakeCommentRepo) GetByID(ctx context.Context, commentID string) (*comment.Comment, error) {
	c, ok := r.stored[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %s not found", commentID)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCommentRepo) AttachClassification(ctx context.Context, commentID string, cls *comment.Classification) error {
	return nil
}

func (r *fakeCommentRepo) MarkProcessed(ctx context.Context, commentID, actionTaken, replyMessage string) error {
	if c, ok := r.stored[commentID]; ok {
		c.Status = comment.StatusProcessed
		c.ActionTaken = actionTaken
	}
	return nil
}

func (r *fakeCommentRepo) MarkFailed(ctx context.Context, commentID, reason string) error {
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

type fakeProducer struct {
	published []*models.QueueMessage
	err       error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, msg *models.QueueMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type ingestionFixture struct {
	service  *Service
	configs  *fakeConfigs
	fetcher  *fakeFetcher
	comments *fakeCommentRepo
	producer *fakeProducer
}

func newFixture() *ingestionFixture {
	f := &ingestionFixture{
		configs:  newFakeConfigs(),
		fetcher:  &fakeFetcher{},
		comments: newFakeCommentRepo(),
		producer: &fakeProducer{},
	}
	cfg := config.IngestionConfig{IntervalSeconds: 300, LookbackSeconds: 3600}
	f.service = NewService(cfg, f.configs, f.fetcher, f.comments, f.producer, nil, "comment-events", logger.NopLogger())
	return f
}

func rawComment(id, platform string) social.RawComment {
	return social.RawComment{
		CommentID:  id,
		Platform:   platform,
		PostID:     "post-1",
		AuthorID:   "u-1",
		AuthorName: "Jane",
		Text:       "hello",
	}
}

func TestPollClientStoresAndEnqueues(t *testing.T) {
	f := newFixture()
	f.fetcher.page = []social.RawComment{rawComment("fb-1", "facebook")}
	f.fetcher.instagram = []social.RawComment{rawComment("ig-1", "instagram")}

	stored, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	require.Len(t, f.comments.inserted, 2)
	assert.Equal(t, comment.StatusPending, f.comments.inserted[0].Status)
	assert.Equal(t, "client-1", f.comments.inserted[0].ClientID)

	require.Len(t, f.producer.published, 2)
	assert.Equal(t, models.ActionClassifyComment, f.producer.published[0].Action)
	assert.Equal(t, "fb-1", f.producer.published[0].CommentID)
	assert.Equal(t, 1, f.producer.published[0].Delivery.ReceiveCount)
}

func TestPollClientAdvancesWatermark(t *testing.T) {
	f := newFixture()
	before := time.Now().UTC()

	_, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)

	wm := f.configs.watermarks["client-1"]
	assert.False(t, wm.IsZero())
	assert.False(t, wm.Before(before))
}

func TestPollClientFirstRunUsesLookback(t *testing.T) {
	f := newFixture()

	_, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)

	// No prior watermark: fetch window starts roughly lookback ago.
	expected := time.Now().UTC().Add(-3600 * time.Second)
	assert.WithinDuration(t, expected, f.fetcher.lastSince, 5*time.Second)
}

func TestPollClientUsesStoredWatermark(t *testing.T) {
	f := newFixture()
	stored := time.Now().UTC().Add(-10 * time.Minute)
	f.configs.watermarks["client-1"] = stored

	_, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, stored, f.fetcher.lastSince)
}

func TestPollClientSkipsDisabledClient(t *testing.T) {
	f := newFixture()
	f.configs.creds["client-1"].Enabled = false
	f.fetcher.page = []social.RawComment{rawComment("fb-1", "facebook")}

	stored, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Empty(t, f.comments.inserted)
}

func TestPollClientDeduplicates(t *testing.T) {
	f := newFixture()
	f.fetcher.page = []social.RawComment{rawComment("fb-1", "facebook")}

	stored, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	require.NoError(t, f.comments.MarkProcessed(context.Background(), "fb-1", "replied", ""))

	// Second cycle refetches the same, already handled comment; nothing
	// new stored or enqueued.
	stored, err = f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Len(t, f.producer.published, 1)
}

func TestPollClientReenqueuesStrandedPendingComment(t *testing.T) {
	f := newFixture()
	f.fetcher.page = []social.RawComment{rawComment("fb-1", "facebook")}
	f.producer.err = fmt.Errorf("kafka down")

	// First cycle stores the comment durably but cannot enqueue it.
	_, err := f.service.pollClient(context.Background(), "client-1")
	require.Error(t, err)
	require.Len(t, f.comments.inserted, 1)
	assert.Empty(t, f.producer.published)
	assert.True(t, f.configs.watermarks["client-1"].IsZero())

	// The broker recovers; the refetched duplicate is still pending and
	// must be enqueued rather than skipped.
	f.producer.err = nil
	stored, err := f.service.pollClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Zero(t, stored)
	require.Len(t, f.producer.published, 1)
	assert.Equal(t, "fb-1", f.producer.published[0].CommentID)
	assert.False(t, f.configs.watermarks["client-1"].IsZero())
}

func TestPollClientFetchErrorKeepsWatermark(t *testing.T) {
	f := newFixture()
	f.fetcher.igErr = fmt.Errorf("graph api unavailable")

	_, err := f.service.pollClient(context.Background(), "client-1")
	require.Error(t, err)
	assert.True(t, f.configs.watermarks["client-1"].IsZero())
}

func TestPollClientPublishErrorKeepsWatermark(t *testing.T) {
	f := newFixture()
	f.fetcher.page = []social.RawComment{rawComment("fb-1", "facebook")}
	f.producer.err = fmt.Errorf("kafka down")

	_, err := f.service.pollClient(context.Background(), "client-1")
	require.Error(t, err)
	assert.True(t, f.configs.watermarks["client-1"].IsZero())
}

func TestRunCycleIsolatesClientFailures(t *testing.T) {
	f := newFixture()
	f.configs.clients = []string{"client-1", "client-2"}
	// client-2 has no credentials, its poll fails.
	f.fetcher.page = []social.RawComment{rawComment("fb-1", "facebook")}

	f.service.runCycle(context.Background())

	assert.Len(t, f.comments.inserted, 1)
	assert.False(t, f.configs.watermarks["client-1"].IsZero())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.service.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
