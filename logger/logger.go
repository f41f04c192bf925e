package logger

import "context"

// Logger is the structured logger used across shotdiff. Fields are attached
// as key/value pairs so runs, labels and widths can be filtered on later.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// WithField returns a logger that adds key to every entry.
	WithField(key string, value interface{}) Logger

	// WithFields returns a logger that adds all of fields to every entry.
	WithFields(fields map[string]interface{}) Logger
}
