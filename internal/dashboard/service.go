package dashboard

import (
	"context"
	"time"

	"sentinel/internal/audit"
	"sentinel/internal/comment"
	"sentinel/internal/logger"
)

// MetricsReport is the on-demand aggregate view served by the API.
// automation_rate counts actions that needed no human (replied+hidden),
// response_rate counts replies against comments that asked for one.
type MetricsReport struct {
	TotalComments   int64            `json:"total_comments"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	ActionCounts    map[string]int64 `json:"action_counts"`
	SentimentCounts map[string]int64 `json:"sentiment_counts"`
	AuditCounts     map[string]int64 `json:"audit_counts"`
	AutomationRate  float64          `json:"automation_rate"`
	ResponseRate    float64          `json:"response_rate"`
	Since           *time.Time       `json:"since,omitempty"`
}

type Service interface {
	ListComments(ctx context.Context, filter comment.ListFilter) ([]comment.Comment, int64, error)
	GetComment(ctx context.Context, commentID string) (*comment.Comment, error)
	AuditLogs(ctx context.Context, filter audit.QueryFilter) ([]audit.LogEntry, error)
	Metrics(ctx context.Context, clientID string, since time.Time) (*MetricsReport, error)
}

type service struct {
	comments comment.Repository
	audit    audit.Repository
	logger   logger.Logger
}

func NewService(comments comment.Repository, auditRepo audit.Repository, log logger.Logger) Service {
	return &service{
		comments: comments,
		audit:    auditRepo,
		logger:   log,
	}
}

func (s *service) ListComments(ctx context.Context, filter comment.ListFilter) ([]comment.Comment, int64, error) {
	return s.comments.List(ctx, filter)
}

func (s *service) GetComment(ctx context.Context, commentID string) (*comment.Comment, error) {
	return s.comments.GetByID(ctx, commentID)
}

func (s *service) AuditLogs(ctx context.Context, filter audit.QueryFilter) ([]audit.LogEntry, error) {
	return s.audit.Query(ctx, filter)
}

func (s *service) Metrics(ctx context.Context, clientID string, since time.Time) (*MetricsReport, error) {
	statusCounts, err := s.comments.CountByStatus(ctx, clientID, since)
	if err != nil {
		return nil, err
	}

	actionCounts, err := s.comments.CountByAction(ctx, clientID, since)
	if err != nil {
		return nil, err
	}

	sentimentCounts, err := s.comments.CountBySentiment(ctx, clientID, since)
	if err != nil {
		return nil, err
	}

	requiringResponse, err := s.comments.CountRequiringResponse(ctx, clientID, since)
	if err != nil {
		return nil, err
	}

	auditCounts, err := s.audit.CountByActionType(ctx, clientID, since)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, count := range statusCounts {
		total += count
	}

	report := &MetricsReport{
		TotalComments:   total,
		StatusCounts:    statusCounts,
		ActionCounts:    actionCounts,
		SentimentCounts: sentimentCounts,
		AuditCounts:     auditCounts,
	}
	if !since.IsZero() {
		report.Since = &since
	}

	if total > 0 {
		automated := actionCounts["replied"] + actionCounts["hidden"]
		report.AutomationRate = float64(automated) / float64(total)
	}
	if requiringResponse > 0 {
		report.ResponseRate = float64(actionCounts["replied"]) / float64(requiringResponse)
	}

	return report, nil
}
