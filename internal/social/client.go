package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sentinel/internal/clientconfig"
	"sentinel/internal/config"
	"sentinel/internal/constants"
	"sentinel/internal/logger"
	"sentinel/pkg/circuitbreaker"
	"sentinel/pkg/retry"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// graphTime is the timestamp layout used by the Graph API.
const graphTime = "2006-01-02T15:04:05-0700"

// RawComment is a platform comment before it enters the store.
type RawComment struct {
	CommentID   string
	Platform    string
	PostID      string
	AuthorID    string
	AuthorName  string
	Text        string
	Permalink   string
	LikeCount   int
	ReplyCount  int
	CreatedTime time.Time
}

// Client talks to the Meta Graph API. All calls go through a shared
// rate limiter and a circuit breaker; failures carry the retry taxonomy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cb         *circuitbreaker.Wrapper
	logger     logger.Logger
}

func NewClient(cfg config.SocialConfig, log logger.Logger) *Client {
	baseURL := cfg.GraphAPIBaseURL
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}

	timeout := cfg.TimeoutSeconds * time.Second
	if timeout <= 0 {
		timeout = constants.SocialTimeout
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10.0
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cb:         circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("meta-graph")),
		logger:     log,
	}
}

type graphErrorResponse struct {
	Error *GraphError `json:"error"`
}

type fbComment struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
	LikeCount    int    `json:"like_count"`
	CommentCount int    `json:"comment_count"`
	From         struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
}

type fbFeedResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Comments struct {
			Data []fbComment `json:"data"`
		} `json:"comments"`
	} `json:"data"`
}

type igComment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	LikeCount int    `json:"like_count"`
	From      struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
}

type igMediaResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Comments struct {
			Data []igComment `json:"data"`
		} `json:"comments"`
	} `json:"data"`
}

type adsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Creative struct {
			EffectiveObjectStoryID string `json:"effective_object_story_id"`
		} `json:"creative"`
	} `json:"data"`
}

type commentListResponse struct {
	Data []fbComment `json:"data"`
}

// FetchPageComments returns Facebook page comments newer than since.
func (c *Client) FetchPageComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]RawComment, error) {
	if creds.PageID == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("fields", fmt.Sprintf(
		"id,comments.filter(stream).since(%d){id,message,from{id,name},created_time,permalink_url,like_count,comment_count}",
		since.Unix(),
	))
	params.Set("limit", "100")

	var resp fbFeedResponse
	if err := c.get(ctx, "/"+creds.PageID+"/feed", params, creds.AccessToken, &resp); err != nil {
		return nil, err
	}

	var out []RawComment
	for _, post := range resp.Data {
		for _, fc := range post.Comments.Data {
			rc := fromFBComment(fc, constants.PlatformFacebook, post.ID)
			if rc.CreatedTime.After(since) {
				out = append(out, rc)
			}
		}
	}

	return out, nil
}

// FetchInstagramComments returns Instagram media comments newer than since.
func (c *Client) FetchInstagramComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]RawComment, error) {
	if creds.IGAccountID == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("fields", "id,comments{id,text,username,from{id,username},timestamp,like_count}")
	params.Set("limit", "50")

	var resp igMediaResponse
	if err := c.get(ctx, "/"+creds.IGAccountID+"/media", params, creds.AccessToken, &resp); err != nil {
		return nil, err
	}

	var out []RawComment
	for _, media := range resp.Data {
		for _, ic := range media.Comments.Data {
			created, _ := time.Parse(graphTime, ic.Timestamp)
			if !created.After(since) {
				continue
			}
			authorID := ic.From.ID
			authorName := ic.From.Username
			if authorName == "" {
				authorName = ic.Username
			}
			out = append(out, RawComment{
				CommentID:   ic.ID,
				Platform:    constants.PlatformInstagram,
				PostID:      media.ID,
				AuthorID:    authorID,
				AuthorName:  authorName,
				Text:        ic.Text,
				LikeCount:   ic.LikeCount,
				CreatedTime: created,
			})
		}
	}

	return out, nil
}

// FetchAdComments returns comments on ad creatives newer than since. Ad
// comments live on the promoted story objects, so the ad account is
// resolved to story IDs first.
func (c *Client) FetchAdComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]RawComment, error) {
	if creds.AdAccountID == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("fields", "id,creative{effective_object_story_id}")
	params.Set("limit", "50")

	var ads adsResponse
	if err := c.get(ctx, "/act_"+strings.TrimPrefix(creds.AdAccountID, "act_")+"/ads", params, creds.AccessToken, &ads); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []RawComment
	for _, ad := range ads.Data {
		storyID := ad.Creative.EffectiveObjectStoryID
		if storyID == "" || seen[storyID] {
			continue
		}
		seen[storyID] = true

		commentParams := url.Values{}
		commentParams.Set("fields", "id,message,from{id,name},created_time,permalink_url,like_count,comment_count")
		commentParams.Set("filter", "stream")
		commentParams.Set("since", fmt.Sprintf("%d", since.Unix()))

		var comments commentListResponse
		if err := c.get(ctx, "/"+storyID+"/comments", commentParams, creds.AccessToken, &comments); err != nil {
			return nil, err
		}

		for _, fc := range comments.Data {
			rc := fromFBComment(fc, constants.PlatformFacebookAds, storyID)
			if rc.CreatedTime.After(since) {
				out = append(out, rc)
			}
		}
	}

	return out, nil
}

// Reply posts a reply under a comment. Instagram uses a dedicated
// replies edge; Facebook and ad comments reply via nested comments.
func (c *Client) Reply(ctx context.Context, creds *clientconfig.MetaAPI, platform, commentID, message string) error {
	edge := "/comments"
	if platform == constants.PlatformInstagram {
		edge = "/replies"
	}

	params := url.Values{}
	params.Set("message", message)

	return c.post(ctx, "/"+commentID+edge, params, creds.AccessToken)
}

// Hide hides a comment from the public view. Hiding an already-hidden
// comment is treated as success.
func (c *Client) Hide(ctx context.Context, creds *clientconfig.MetaAPI, platform, commentID string) error {
	params := url.Values{}
	if platform == constants.PlatformInstagram {
		params.Set("hide", "true")
	} else {
		params.Set("is_hidden", "true")
	}

	err := c.post(ctx, "/"+commentID, params, creds.AccessToken)
	if err != nil && isAlreadyHidden(err) {
		c.logger.InfowCtx(ctx, "Comment already hidden", "platform_comment_id", commentID)
		return nil
	}
	return err
}

func isAlreadyHidden(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already hidden")
}

func (c *Client) get(ctx context.Context, path string, params url.Values, token string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, token, out)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, token string) error {
	return c.do(ctx, http.MethodPost, path, params, token, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, token string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return retry.NewRetryableError(err)
	}

	params.Set("access_token", token)
	reqURL := c.baseURL + path + "?" + params.Encode()

	_, err := c.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, retry.NewFatalError(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, retry.NewRetryableError(fmt.Errorf("graph api request failed: %w", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.NewRetryableError(fmt.Errorf("failed to read graph api response: %w", err))
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			var errResp graphErrorResponse
			if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil {
				errResp.Error.HTTPStatus = resp.StatusCode
				return nil, classifyError(errResp.Error)
			}
			ge := &GraphError{
				Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
				HTTPStatus: resp.StatusCode,
			}
			return nil, classifyError(ge)
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return nil, retry.NewRetryableError(fmt.Errorf("failed to decode graph api response: %w", err))
			}
		}

		return nil, nil
	})

	if err != nil {
		if c.cb.IsOpen() && !retry.IsFatal(err) {
			return retry.NewRetryableError(fmt.Errorf("meta graph circuit breaker open: %w", err))
		}
		return err
	}

	return nil
}

func fromFBComment(fc fbComment, platform, postID string) RawComment {
	created, _ := time.Parse(graphTime, fc.CreatedTime)
	return RawComment{
		CommentID:   fc.ID,
		Platform:    platform,
		PostID:      postID,
		AuthorID:    fc.From.ID,
		AuthorName:  fc.From.Name,
		Text:        fc.Message,
		Permalink:   fc.PermalinkURL,
		LikeCount:   fc.LikeCount,
		ReplyCount:  fc.CommentCount,
		CreatedTime: created,
	}
}
