// Package collector gathers point-in-time process snapshots and the host
// summary that may accompany them.
package collector

import (
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/logging"
)

// BaseCollector provides common functionality for all collectors
type BaseCollector struct {
	logger *zap.Logger
}

// NewBaseCollector creates a new BaseCollector with the given logger.
// A nil logger falls back to the component logger named name.
func NewBaseCollector(logger *zap.Logger, name string) BaseCollector {
	if logger == nil {
		logger = logging.L(name)
	}
	return BaseCollector{logger: logger}
}

// Logger returns the collector's logger
func (b *BaseCollector) Logger() *zap.Logger {
	return b.logger
}

// LogWarning logs a warning message for partial failures during collection
func (b *BaseCollector) LogWarning(msg string, fields ...zap.Field) {
	b.logger.Warn(msg, fields...)
}

// LogError logs an error message
func (b *BaseCollector) LogError(msg string, fields ...zap.Field) {
	b.logger.Error(msg, fields...)
}

// LogDebug logs a debug message
func (b *BaseCollector) LogDebug(msg string, fields ...zap.Field) {
	b.logger.Debug(msg, fields...)
}
