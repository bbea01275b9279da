// Package calllog persists one record per forwarded call.
package calllog

import (
	"context"
	"time"

	"apigateway/internal/models"

	"go.uber.org/zap"
)

type Store interface {
	InsertCallLog(ctx context.Context, log *models.CallLog) error
}

// Logger records forwarded calls when enabled. Writes happen off the
// response path and failures are swallowed after a warning, so a broken
// log store never affects callers.
type Logger struct {
	store   Store
	enabled bool
	logger  *zap.Logger
}

func New(store Store, enabled bool, logger *zap.Logger) *Logger {
	return &Logger{
		store:   store,
		enabled: enabled,
		logger:  logger,
	}
}

func (l *Logger) Enabled() bool {
	return l.enabled
}

// Record persists one call. No-op when disabled.
func (l *Logger) Record(serviceID int, method, path string, statusCode int, requestTime, responseTime time.Time) {
	if !l.enabled {
		return
	}

	entry := &models.CallLog{
		ServiceID:     serviceID,
		Method:        method,
		Path:          path,
		StatusCode:    statusCode,
		RequestTime:   requestTime,
		ResponseTime:  responseTime,
		ExecutionTime: responseTime.Sub(requestTime).Seconds(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := l.store.InsertCallLog(ctx, entry); err != nil {
			l.logger.Warn("call log write failed",
				zap.Int("service_id", serviceID),
				zap.Error(err),
			)
		}
	}()
}
