package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with a context carrying them.
type LogFields struct {
	RequestID      string
	OrganizationID *uint
	UserID         *uint
	Component      string // e.g. "billing.webhook", "scheduler"
}

// WithLogFields merges fields into the context; newer non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.RequestID != "" {
		result.RequestID = next.RequestID
	}
	if next.OrganizationID != nil {
		result.OrganizationID = next.OrganizationID
	}
	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

func Ptr[T any](v T) *T {
	return &v
}

// Truncate cuts s to maxLen bytes, appending "..." when shortened.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
