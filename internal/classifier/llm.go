package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"sentinel/internal/config"
	"sentinel/internal/constants"
	"sentinel/pkg/circuitbreaker"
	"sentinel/pkg/retry"
)

// LLM produces a raw model completion for a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// LangchainLLM wraps a langchaingo model behind a timeout and a circuit
// breaker. An open breaker surfaces as a retryable failure so the queue
// redelivers instead of burning the message.
type LangchainLLM struct {
	model   llms.Model
	name    string
	timeout time.Duration
	cb      *circuitbreaker.Wrapper
}

func NewLLM(cfg config.LLMConfig) (*LangchainLLM, error) {
	if cfg.Provider != "openai" {
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	timeout := cfg.TimeoutSeconds * time.Second
	if timeout <= 0 {
		timeout = constants.LLMTimeout
	}

	return &LangchainLLM{
		model:   model,
		name:    cfg.Model,
		timeout: timeout,
		cb:      circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("llm")),
	}, nil
}

func (l *LangchainLLM) ModelName() string {
	return l.name
}

func (l *LangchainLLM) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	result, err := l.cb.ExecuteWithContext(callCtx, func() (interface{}, error) {
		return llms.GenerateFromSinglePrompt(callCtx, l.model, prompt,
			llms.WithJSONMode(),
			llms.WithTemperature(0.1),
		)
	})
	if err != nil {
		return "", retry.NewRetryableError(fmt.Errorf("llm call failed: %w", err))
	}

	response, ok := result.(string)
	if !ok {
		return "", retry.NewRetryableError(fmt.Errorf("llm returned unexpected result type %T", result))
	}

	return response, nil
}
