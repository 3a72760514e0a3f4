package evidence

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Appender writes a single evidence entry. *Store satisfies it.
type Appender interface {
	Append(ctx context.Context, e *Entry) error
}

// Recorder writes evidence entries best-effort: a failed write is logged and
// recorded on the active trace span, but never propagated. Audit durability
// must not decide whether the caller gets their answer.
type Recorder struct {
	appender Appender
	logger   *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(appender Appender, logger *slog.Logger) (*Recorder, error) {
	if appender == nil {
		return nil, fmt.Errorf("appender is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{appender: appender, logger: logger}, nil
}

// Record appends e, swallowing any write failure. It reports whether the
// entry was durably written.
func (r *Recorder) Record(ctx context.Context, e *Entry) bool {
	if err := r.appender.Append(ctx, e); err != nil {
		r.logger.Error("evidence write failed, continuing without audit record",
			"owner", e.Owner, "grounded", e.Grounded, "error", err)

		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("evidence.write_failed", true))
		return false
	}
	return true
}
