package monitor

import (
	"log/slog"

	"github.com/maestro-sh/maestro/internal/core/domain"
)

// Notifier receives health notifications that passed the notification policy
// and the per-container interval throttle.
type Notifier interface {
	Notify(record domain.HealthRecord, previous domain.HealthStatus)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs at a level matching the
// severity of the reported status.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (l *LogNotifier) Notify(record domain.HealthRecord, previous domain.HealthStatus) {
	attrs := []any{
		"container_id", record.ContainerID,
		"status", record.Status,
		"previous", previous,
		"message", record.Message,
	}

	switch record.Status {
	case domain.HealthUnhealthy:
		l.logger.Error("container health notification", attrs...)
	case domain.HealthWarning:
		l.logger.Warn("container health notification", attrs...)
	default:
		l.logger.Info("container health notification", attrs...)
	}
}
