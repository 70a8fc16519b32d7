package social

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/clientconfig"
	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.SocialConfig{
		GraphAPIBaseURL: server.URL,
		TimeoutSeconds:  5,
		RequestsPerSec:  1000,
		Burst:           1000,
	}, logger.NopLogger())
	return client, server
}

func testCreds() *clientconfig.MetaAPI {
	return &clientconfig.MetaAPI{
		PageID:      "page-1",
		IGAccountID: "ig-1",
		AdAccountID: "act_99",
		AccessToken: "token-abc",
		Enabled:     true,
	}
}

func TestFetchPageComments(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	recent := now.Add(-time.Minute).Format("2006-01-02T15:04:05-0700")
	old := now.Add(-2 * time.Hour).Format("2006-01-02T15:04:05-0700")

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page-1/feed", r.URL.Path)
		assert.Equal(t, "token-abc", r.URL.Query().Get("access_token"))

		fmt.Fprintf(w, `{
			"data": [{
				"id": "post-1",
				"comments": {"data": [
					{"id": "c-new", "message": "recent one", "created_time": %q,
					 "permalink_url": "https://fb.com/c-new", "like_count": 3, "comment_count": 1,
					 "from": {"id": "u-1", "name": "Jane Doe"}},
					{"id": "c-old", "message": "stale one", "created_time": %q,
					 "from": {"id": "u-2", "name": "Old Poster"}}
				]}
			}]
		}`, recent, old)
	})

	comments, err := client.FetchPageComments(context.Background(), testCreds(), now.Add(-30*time.Minute))
	require.NoError(t, err)

	require.Len(t, comments, 1)
	assert.Equal(t, "c-new", comments[0].CommentID)
	assert.Equal(t, "facebook", comments[0].Platform)
	assert.Equal(t, "post-1", comments[0].PostID)
	assert.Equal(t, "Jane Doe", comments[0].AuthorName)
	assert.Equal(t, 3, comments[0].LikeCount)
	assert.Equal(t, "https://fb.com/c-new", comments[0].Permalink)
}

func TestFetchPageCommentsNoPageConfigured(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	creds := testCreds()
	creds.PageID = ""
	comments, err := client.FetchPageComments(context.Background(), creds, time.Now())
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestFetchInstagramComments(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-time.Minute).Format("2006-01-02T15:04:05-0700")

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ig-1/media", r.URL.Path)
		fmt.Fprintf(w, `{
			"data": [{
				"id": "media-1",
				"comments": {"data": [
					{"id": "ig-c-1", "text": "nice shot", "username": "jane.ig",
					 "timestamp": %q, "like_count": 7, "from": {"id": "u-9", "username": "jane.ig"}}
				]}
			}]
		}`, recent)
	})

	comments, err := client.FetchInstagramComments(context.Background(), testCreds(), now.Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, comments, 1)
	assert.Equal(t, "ig-c-1", comments[0].CommentID)
	assert.Equal(t, "instagram", comments[0].Platform)
	assert.Equal(t, "media-1", comments[0].PostID)
	assert.Equal(t, "jane.ig", comments[0].AuthorName)
}

func TestFetchAdCommentsDeduplicatesStories(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-time.Minute).Format("2006-01-02T15:04:05-0700")
	storyRequests := 0

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/act_99/ads":
			// Two ads promoting the same story.
			fmt.Fprint(w, `{"data": [
				{"id": "ad-1", "creative": {"effective_object_story_id": "story-1"}},
				{"id": "ad-2", "creative": {"effective_object_story_id": "story-1"}}
			]}`)
		case "/story-1/comments":
			storyRequests++
			fmt.Fprintf(w, `{"data": [
				{"id": "ad-c-1", "message": "how much?", "created_time": %q,
				 "from": {"id": "u-3", "name": "Buyer"}}
			]}`, recent)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	comments, err := client.FetchAdComments(context.Background(), testCreds(), now.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, storyRequests)
	require.Len(t, comments, 1)
	assert.Equal(t, "ad-c-1", comments[0].CommentID)
	assert.Equal(t, "facebook_ads", comments[0].Platform)
	assert.Equal(t, "story-1", comments[0].PostID)
}

func TestReply(t *testing.T) {
	var gotPath, gotMessage string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotMessage = r.FormValue("message")
		fmt.Fprint(w, `{"id": "reply-1"}`)
	})

	err := client.Reply(context.Background(), testCreds(), "facebook", "c-1", "Thanks Jane!")
	require.NoError(t, err)
	assert.Equal(t, "/c-1/comments", gotPath)
	assert.Equal(t, "Thanks Jane!", gotMessage)

	err = client.Reply(context.Background(), testCreds(), "instagram", "ig-c-1", "Thanks!")
	require.NoError(t, err)
	assert.Equal(t, "/ig-c-1/replies", gotPath)
}

func TestHide(t *testing.T) {
	var gotForm map[string][]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.Form
		fmt.Fprint(w, `{"success": true}`)
	})

	err := client.Hide(context.Background(), testCreds(), "facebook", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "true", gotForm["is_hidden"][0])

	err = client.Hide(context.Background(), testCreds(), "instagram", "ig-c-1")
	require.NoError(t, err)
	assert.Equal(t, "true", gotForm["hide"][0])
}

func TestHideAlreadyHiddenIsSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "Comment is already hidden", "code": 1}}`)
	})

	err := client.Hide(context.Background(), testCreds(), "facebook", "c-1")
	assert.NoError(t, err)
}

func TestErrorClassificationFromResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFatal bool
	}{
		{
			name:      "expired token is fatal",
			status:    http.StatusUnauthorized,
			body:      `{"error": {"message": "Error validating access token", "code": 190}}`,
			wantFatal: true,
		},
		{
			name:      "rate limit is retryable",
			status:    http.StatusBadRequest,
			body:      `{"error": {"message": "Application request limit reached", "code": 4}}`,
			wantFatal: false,
		},
		{
			name:      "server error is retryable",
			status:    http.StatusInternalServerError,
			body:      `{"error": {"message": "An unexpected error occurred", "code": 1}}`,
			wantFatal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			err := client.Reply(context.Background(), testCreds(), "facebook", "c-1", "hi")
			require.Error(t, err)
			assert.Equal(t, tt.wantFatal, retry.IsFatal(err))
		})
	}
}
