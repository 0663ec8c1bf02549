package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger: JSON in production, console output
// with stack traces when Development is set
func (l LoggingConfig) NewLogger() (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", l.Level, err)
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}
