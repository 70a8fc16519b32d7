package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	CommentIDKey   contextKey = "comment_id"
	ClientIDKey    contextKey = "client_id"
	ServiceNameKey contextKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithCommentID(ctx context.Context, commentID string) context.Context {
	return context.WithValue(ctx, CommentIDKey, commentID)
}

func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetCommentID(ctx context.Context) string {
	return stringValue(ctx, CommentIDKey)
}

func GetClientID(ctx context.Context) string {
	return stringValue(ctx, ClientIDKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetLogFields returns the pipeline correlation fields present on the context
// as key/value pairs ready for a sugared logger.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, string(TraceIDKey), traceID)
	}
	if commentID := GetCommentID(ctx); commentID != "" {
		fields = append(fields, string(CommentIDKey), commentID)
	}
	if clientID := GetClientID(ctx); clientID != "" {
		fields = append(fields, string(ClientIDKey), clientID)
	}
	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, string(ServiceNameKey), serviceName)
	}

	return fields
}
