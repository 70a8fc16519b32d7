package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CommentInput is the variable set exposed to skip expressions.
type CommentInput struct {
	CommentID  string
	Platform   string
	Text       string
	AuthorID   string
	AuthorName string
	PostID     string
	CreatedAt  interface{}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("comment_id", cel.StringType),
		cel.Variable("platform", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("author", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("post_id", cel.StringType),
		cel.Variable("created_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateSkipExpression checks that an expression compiles and returns bool.
func (e *Evaluator) ValidateSkipExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("skip expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateSkip returns true when the comment matches the skip expression
// and should bypass classification.
func (e *Evaluator) EvaluateSkip(ctx context.Context, expression string, in CommentInput) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("skip expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	vars := map[string]interface{}{
		"comment_id": in.CommentID,
		"platform":   in.Platform,
		"text":       in.Text,
		"author": map[string]string{
			"id":   in.AuthorID,
			"name": in.AuthorName,
		},
		"post_id":    in.PostID,
		"created_at": in.CreatedAt,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
