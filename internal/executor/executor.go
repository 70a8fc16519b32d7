package executor

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/audit"
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/logger"
	"sentinel/internal/notify"
	"sentinel/internal/router"
	"sentinel/pkg/metrics"
)

// ConfigProvider exposes the typed client configs the executors need.
type ConfigProvider interface {
	MetaAPI(ctx context.Context, clientID string) (*clientconfig.MetaAPI, error)
	ResponseTemplates(ctx context.Context, clientID string) (*clientconfig.ResponseTemplates, error)
	ModerationRules(ctx context.Context, clientID string) (*clientconfig.ModerationRules, error)
	Notifications(ctx context.Context, clientID string) (*clientconfig.Notifications, error)
}

// SocialAPI is the slice of the Meta client the executors use.
type SocialAPI interface {
	Reply(ctx context.Context, creds *clientconfig.MetaAPI, platform, commentID, message string) error
	Hide(ctx context.Context, creds *clientconfig.MetaAPI, platform, commentID string) error
}

type Executor struct {
	comments comment.Repository
	configs  ConfigProvider
	social   SocialAPI
	notifier notify.Notifier
	audit    audit.Repository
	logger   logger.Logger
}

func New(
	comments comment.Repository,
	configs ConfigProvider,
	social SocialAPI,
	notifier notify.Notifier,
	auditRepo audit.Repository,
	log logger.Logger,
) *Executor {
	return &Executor{
		comments: comments,
		configs:  configs,
		social:   social,
		notifier: notifier,
		audit:    auditRepo,
		logger:   log,
	}
}

// Execute carries out the routed action for a classified comment.
// Redelivery safe: a comment already processed with an action short-
// circuits as success so external calls never run twice.
func (e *Executor) Execute(ctx context.Context, c *comment.Comment, decision router.Decision) error {
	if c.Status == comment.StatusProcessed && c.ActionTaken != "" {
		e.logger.InfowCtx(ctx, "Comment already processed, skipping action",
			"action_taken", c.ActionTaken,
		)
		return nil
	}

	start := time.Now()
	var err error

	switch decision.Action {
	case router.ActionReply:
		err = e.executeReply(ctx, c, decision)
	case router.ActionHide:
		err = e.executeHide(ctx, c, decision)
	case router.ActionEscalate:
		err = e.executeEscalate(ctx, c, decision)
	case router.ActionIgnore:
		err = e.executeIgnore(ctx, c, decision)
	default:
		err = fmt.Errorf("unknown action: %s", decision.Action)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ActionsTotal.WithLabelValues(string(decision.Action), status).Inc()
	metrics.ObserveActionDuration(time.Since(start), string(decision.Action))

	return err
}

func (e *Executor) finalize(ctx context.Context, c *comment.Comment, actionTaken, replyMessage, auditAction string, details map[string]interface{}) error {
	if err := e.comments.MarkProcessed(ctx, c.CommentID, actionTaken, replyMessage); err != nil {
		return fmt.Errorf("failed to finalize comment: %w", err)
	}

	entry := audit.LogEntry{
		ClientID:   c.ClientID,
		CommentID:  c.CommentID,
		ActionType: auditAction,
		Details:    details,
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		// The action already happened; a lost audit row must not force
		// a redelivery that would repeat it.
		e.logger.ErrorwCtx(ctx, "Failed to record audit entry",
			"error", err,
			"action_type", auditAction,
		)
	}

	return nil
}
