package classifier

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/audit"
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/executor"
	"sentinel/internal/logger"
	"sentinel/internal/router"
	"sentinel/pkg/cel"
	"sentinel/pkg/metrics"
	"sentinel/pkg/models"
	"sentinel/pkg/retry"
)

// ConfigProvider is the slice of the client config provider the
// classifier needs.
type ConfigProvider interface {
	ClassificationRules(ctx context.Context, clientID string) (*clientconfig.ClassificationRules, error)
	ModerationRules(ctx context.Context, clientID string) (*clientconfig.ModerationRules, error)
}

// Service consumes queued comments and runs the full unit of work:
// classify, persist, route and execute, all before the offset commits.
type Service struct {
	comments        comment.Repository
	configs         ConfigProvider
	evaluator       *cel.Evaluator
	llm             LLM
	executor        *executor.Executor
	audit           audit.Repository
	logger          logger.Logger
	maxReceiveCount int
}

func NewService(
	comments comment.Repository,
	configs ConfigProvider,
	evaluator *cel.Evaluator,
	llm LLM,
	exec *executor.Executor,
	auditRepo audit.Repository,
	maxReceiveCount int,
	log logger.Logger,
) *Service {
	return &Service{
		comments:        comments,
		configs:         configs,
		evaluator:       evaluator,
		llm:             llm,
		executor:        exec,
		audit:           auditRepo,
		logger:          log,
		maxReceiveCount: maxReceiveCount,
	}
}

// HandleMessage is the queue handler. Errors carry the retry taxonomy;
// terminal failures are recorded on the comment and in the audit trail
// before the message heads to the DLQ.
func (s *Service) HandleMessage(ctx context.Context, msg *models.QueueMessage) error {
	if msg.Action != models.ActionClassifyComment {
		s.logger.WarnwCtx(ctx, "Unknown message action, dropping", "action", msg.Action)
		return nil
	}

	err := s.process(ctx, msg)
	if err == nil {
		return nil
	}

	if retry.IsFatal(err) || msg.Delivery.ReceiveCount >= s.maxReceiveCount {
		s.recordTerminalFailure(ctx, msg, err)
	}

	return err
}

func (s *Service) process(ctx context.Context, msg *models.QueueMessage) error {
	c, err := s.comments.GetByID(ctx, msg.CommentID)
	if err != nil {
		// An ingested comment should always be stored before it is
		// enqueued; keep retrying within the budget in case of a lagging
		// read, then let the DLQ catch it. The repository's not-found maps
		// to a fatal marker, so the chain is flattened with %v to keep
		// the grace window.
		return retry.NewRetryableError(fmt.Errorf("failed to load comment %s: %v", msg.CommentID, err))
	}

	// Redelivery after a completed run: nothing left to do.
	if c.Status == comment.StatusProcessed && c.ActionTaken != "" {
		s.logger.InfowCtx(ctx, "Comment already processed, committing redelivery")
		return nil
	}

	// Already recorded as a terminal failure; stop burning attempts and
	// let the broker dead-letter the message.
	if c.Status == comment.StatusFailed {
		return retry.NewFatalError(fmt.Errorf("comment %s already marked failed", c.CommentID))
	}

	rules, err := s.configs.ClassificationRules(ctx, c.ClientID)
	if err != nil {
		return retry.NewRetryableError(err)
	}

	if ruleID, matched := s.matchesSkipRule(ctx, c, rules); matched {
		s.logger.InfowCtx(ctx, "Comment matched skip expression", "rule", ruleID)
		return s.executor.Execute(ctx, c, router.Decision{
			Action: router.ActionIgnore,
			Reason: "skip_expression:" + ruleID,
		})
	}

	// A redelivery that already classified skips the LLM and resumes at
	// routing.
	cls := c.Classification
	if cls == nil || c.Status == comment.StatusPending {
		cls, err = s.classify(ctx, c, rules)
		if err != nil {
			return err
		}

		if err := s.comments.AttachClassification(ctx, c.CommentID, cls); err != nil {
			return retry.NewRetryableError(err)
		}
		c.Classification = cls
		c.Status = comment.StatusClassified

		s.recordClassificationAudit(ctx, c, cls)
	}

	moderation, err := s.configs.ModerationRules(ctx, c.ClientID)
	if err != nil {
		return retry.NewRetryableError(err)
	}

	decision := router.Decide(cls, rules, moderation)
	s.logger.InfowCtx(ctx, "Action decided",
		"action", decision.Action,
		"reason", decision.Reason,
	)

	return s.executor.Execute(ctx, c, decision)
}

func (s *Service) classify(ctx context.Context, c *comment.Comment, rules *clientconfig.ClassificationRules) (*comment.Classification, error) {
	start := time.Now()

	prompt := BuildPrompt(c, rules)
	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		metrics.ObserveClassificationDuration(time.Since(start), "error")
		return nil, err
	}

	cls, err := ParseClassification(raw, s.llm.ModelName())
	if err != nil {
		metrics.ObserveClassificationDuration(time.Since(start), "invalid")
		metrics.ClassifiedCommentsTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, retry.NewRetryableError(fmt.Errorf("unusable llm output: %w", err))
	}

	overrides := ApplyKeywordOverrides(cls, rules, c.Text)
	if len(overrides) > 0 {
		s.logger.InfowCtx(ctx, "Keyword overrides applied", "overrides", overrides)
	}

	metrics.ObserveClassificationDuration(time.Since(start), "success")
	metrics.ClassifiedCommentsTotal.WithLabelValues(cls.Sentiment, "success").Inc()

	return cls, nil
}

func (s *Service) matchesSkipRule(ctx context.Context, c *comment.Comment, rules *clientconfig.ClassificationRules) (string, bool) {
	for i, expr := range rules.SkipExpressions {
		ruleID := fmt.Sprintf("%d", i)
		matched, err := s.evaluator.EvaluateSkip(ctx, expr, cel.CommentInput{
			CommentID:  c.CommentID,
			Platform:   c.Platform,
			Text:       c.Text,
			AuthorID:   c.AuthorID,
			AuthorName: c.AuthorName,
			PostID:     c.PostID,
			CreatedAt:  c.CreatedTime,
		})
		if err != nil {
			// A broken expression must not block moderation.
			s.logger.WarnwCtx(ctx, "Skip expression evaluation failed",
				"error", err,
				"rule", ruleID,
			)
			continue
		}
		if matched {
			return ruleID, true
		}
	}
	return "", false
}

func (s *Service) recordClassificationAudit(ctx context.Context, c *comment.Comment, cls *comment.Classification) {
	entry := audit.LogEntry{
		ClientID:   c.ClientID,
		CommentID:  c.CommentID,
		ActionType: audit.ActionClassificationCompleted,
		Details: map[string]interface{}{
			"sentiment":         cls.Sentiment,
			"urgency":           cls.Urgency,
			"intent":            cls.Intent,
			"toxicity_score":    cls.ToxicityScore,
			"confidence":        cls.Confidence,
			"requires_response": cls.RequiresResponse,
			"model":             cls.Model,
		},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record classification audit entry", "error", err)
	}
}

// recordTerminalFailure marks the comment failed and audits the loss
// right before the broker moves the message to the DLQ. The broker's
// in-process retries re-invoke the handler on the final delivery, so
// the recording must stay idempotent: an already-failed comment gets
// no second audit entry.
func (s *Service) recordTerminalFailure(ctx context.Context, msg *models.QueueMessage, cause error) {
	if c, err := s.comments.GetByID(ctx, msg.CommentID); err == nil && c.Status == comment.StatusFailed {
		return
	}

	if err := s.comments.MarkFailed(ctx, msg.CommentID, cause.Error()); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to mark comment failed", "error", err)
	}

	entry := audit.LogEntry{
		ClientID:   msg.ClientID,
		CommentID:  msg.CommentID,
		ActionType: audit.ActionFailed,
		Details: map[string]interface{}{
			"error":         cause.Error(),
			"receive_count": msg.Delivery.ReceiveCount,
		},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record failure audit entry", "error", err)
	}
}
