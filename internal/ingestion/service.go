package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sentinel/internal/broker"
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/config"
	"sentinel/internal/constants"
	"sentinel/internal/logger"
	"sentinel/internal/social"
	"sentinel/pkg/logging"
	"sentinel/pkg/metrics"
	"sentinel/pkg/models"
)

// ConfigProvider is the slice of the client config provider ingestion
// needs.
type ConfigProvider interface {
	ListActiveMetaClients(ctx context.Context) ([]string, error)
	MetaAPI(ctx context.Context, clientID string) (*clientconfig.MetaAPI, error)
	Watermark(ctx context.Context, clientID string) (time.Time, error)
	SetWatermark(ctx context.Context, clientID string, t time.Time) error
}

// SocialFetcher is the slice of the Meta client ingestion needs.
type SocialFetcher interface {
	FetchPageComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]social.RawComment, error)
	FetchInstagramComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]social.RawComment, error)
	FetchAdComments(ctx context.Context, creds *clientconfig.MetaAPI, since time.Time) ([]social.RawComment, error)
}

// Service polls client Meta assets on a fixed interval, stores new
// comments as pending and enqueues them for classification.
type Service struct {
	cfg      config.IngestionConfig
	configs  ConfigProvider
	social   SocialFetcher
	comments comment.Repository
	producer broker.Producer
	cache    *redis.Client
	topic    string
	logger   logger.Logger
}

func NewService(
	cfg config.IngestionConfig,
	configs ConfigProvider,
	fetcher SocialFetcher,
	comments comment.Repository,
	producer broker.Producer,
	cache *redis.Client,
	topic string,
	log logger.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		configs:  configs,
		social:   fetcher,
		comments: comments,
		producer: producer,
		cache:    cache,
		topic:    topic,
		logger:   log,
	}
}

// Run blocks until ctx is canceled, executing one poll cycle per
// interval. The first cycle starts immediately.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = constants.DefaultPollIntervalSeconds * time.Second
	}

	s.logger.Infow("Ingestion loop started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Ingestion loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle polls every active client. One client's failure is isolated:
// logged, counted, and the cycle moves on.
func (s *Service) runCycle(ctx context.Context) {
	start := time.Now()

	clients, err := s.configs.ListActiveMetaClients(ctx)
	if err != nil {
		s.logger.Errorw("Failed to list active clients", "error", err)
		metrics.IngestionCyclesTotal.WithLabelValues("error").Inc()
		return
	}

	var failed int
	var totalNew int
	for _, clientID := range clients {
		clientCtx := logging.WithClientID(ctx, clientID)
		stored, err := s.pollClient(clientCtx, clientID)
		if err != nil {
			failed++
			s.logger.ErrorwCtx(clientCtx, "Client poll failed", "error", err)
			continue
		}
		totalNew += stored
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	metrics.IngestionCyclesTotal.WithLabelValues(status).Inc()

	s.logger.Infow("Ingestion cycle completed",
		"clients", len(clients),
		"failed_clients", failed,
		"new_comments", totalNew,
		"duration", time.Since(start),
	)
}

func (s *Service) pollClient(ctx context.Context, clientID string) (int, error) {
	creds, err := s.configs.MetaAPI(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if !creds.Enabled {
		return 0, nil
	}

	since, err := s.configs.Watermark(ctx, clientID)
	if err != nil {
		return 0, err
	}
	pollStart := time.Now().UTC()
	if since.IsZero() {
		lookback := time.Duration(s.cfg.LookbackSeconds) * time.Second
		if lookback <= 0 {
			lookback = constants.DefaultLookbackSeconds * time.Second
		}
		since = pollStart.Add(-lookback)
	}

	var raw []social.RawComment

	pageComments, err := s.social.FetchPageComments(ctx, creds, since)
	if err != nil {
		return 0, fmt.Errorf("page fetch: %w", err)
	}
	raw = append(raw, pageComments...)

	igComments, err := s.social.FetchInstagramComments(ctx, creds, since)
	if err != nil {
		return 0, fmt.Errorf("instagram fetch: %w", err)
	}
	raw = append(raw, igComments...)

	adComments, err := s.social.FetchAdComments(ctx, creds, since)
	if err != nil {
		return 0, fmt.Errorf("ads fetch: %w", err)
	}
	raw = append(raw, adComments...)

	stored := 0
	for i := range raw {
		inserted, err := s.ingestComment(ctx, clientID, &raw[i])
		if err != nil {
			// Watermark stays put so the next cycle refetches this batch;
			// dedup absorbs the overlap.
			return stored, err
		}
		if inserted {
			stored++
		}
	}

	// Advance only after the whole batch is durable and enqueued.
	if err := s.configs.SetWatermark(ctx, clientID, pollStart); err != nil {
		return stored, fmt.Errorf("failed to advance watermark: %w", err)
	}

	return stored, nil
}

// ingestComment stores and enqueues one comment. Returns false when the
// comment was already seen. The Redis fast path only skips work; the
// Mongo insert is the authoritative dedup. The seen key is written only
// after the comment is both stored and enqueued, so a crash between the
// two leaves a retryable window rather than a stranded comment.
func (s *Service) ingestComment(ctx context.Context, clientID string, rc *social.RawComment) (bool, error) {
	key := constants.CacheKeyPrefixSeen + rc.CommentID
	if s.cache != nil {
		n, err := s.cache.Exists(ctx, key).Result()
		if err != nil {
			s.logger.WarnwCtx(ctx, "Dedup cache unavailable, falling back to store",
				"error", err,
			)
		} else if n > 0 {
			metrics.IngestedCommentsTotal.WithLabelValues(rc.Platform, "duplicate").Inc()
			return false, nil
		}
	}

	c := &comment.Comment{
		CommentID:   rc.CommentID,
		ClientID:    clientID,
		Platform:    rc.Platform,
		PostID:      rc.PostID,
		AuthorID:    rc.AuthorID,
		AuthorName:  rc.AuthorName,
		Text:        rc.Text,
		Permalink:   rc.Permalink,
		LikeCount:   rc.LikeCount,
		ReplyCount:  rc.ReplyCount,
		CreatedTime: rc.CreatedTime,
		Status:      comment.StatusPending,
	}

	inserted, err := s.comments.InsertIfAbsent(ctx, c)
	if err != nil {
		return false, fmt.Errorf("failed to store comment: %w", err)
	}
	if !inserted {
		// A previous cycle stored the comment but may have crashed before
		// the enqueue. Re-publish while it is still pending; the classifier
		// treats redeliveries of completed comments as no-ops.
		existing, err := s.comments.GetByID(ctx, rc.CommentID)
		if err != nil {
			return false, fmt.Errorf("failed to load stored comment: %w", err)
		}
		if existing.Status == comment.StatusPending {
			msg := models.NewClassifyMessage(rc.CommentID, clientID, logging.GetTraceID(ctx))
			if err := s.producer.Publish(ctx, s.topic, msg); err != nil {
				return false, fmt.Errorf("failed to enqueue comment: %w", err)
			}
		}
		s.markSeen(ctx, key)
		metrics.IngestedCommentsTotal.WithLabelValues(rc.Platform, "duplicate").Inc()
		return false, nil
	}

	msg := models.NewClassifyMessage(rc.CommentID, clientID, logging.GetTraceID(ctx))
	if err := s.producer.Publish(ctx, s.topic, msg); err != nil {
		return false, fmt.Errorf("failed to enqueue comment: %w", err)
	}

	s.markSeen(ctx, key)
	metrics.IngestedCommentsTotal.WithLabelValues(rc.Platform, "new").Inc()
	return true, nil
}

func (s *Service) markSeen(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, 1, 24*time.Hour).Err(); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to record dedup key", "error", err)
	}
}
