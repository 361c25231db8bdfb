package outbox

import (
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordBatchProcessed(int, time.Duration)         {}
func (NoOpMetricsCollector) RecordOutboxLag(int)                             {}
func (NoOpMetricsCollector) RecordPublishAttempt(string, int, bool)          {}

// LogMetrics reports outbox metrics as structured log lines.
type LogMetrics struct {
	// SlowPublish marks publishes worth a warning.
	SlowPublish time.Duration
}

func NewLogMetrics() *LogMetrics {
	return &LogMetrics{SlowPublish: time.Second}
}

func (m *LogMetrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	ev := log.Debug()
	if !success {
		ev = log.Warn()
	} else if duration > m.SlowPublish {
		ev = log.Warn()
	}
	ev.Str("metric", "outbox_event").
		Str("event_type", eventType).
		Bool("success", success).
		Dur("duration", duration).
		Send()
}

func (m *LogMetrics) RecordBatchProcessed(count int, duration time.Duration) {
	log.Info().
		Str("metric", "outbox_batch").
		Int("count", count).
		Dur("duration", duration).
		Send()
}

func (m *LogMetrics) RecordOutboxLag(lag int) {
	ev := log.Debug()
	if lag > 0 {
		ev = log.Info()
	}
	ev.Str("metric", "outbox_lag").Int("lag", lag).Send()
}

func (m *LogMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	if attempt == 1 && success {
		return
	}
	log.Info().
		Str("metric", "outbox_publish_attempt").
		Str("event_type", eventType).
		Int("attempt", attempt).
		Bool("success", success).
		Send()
}
