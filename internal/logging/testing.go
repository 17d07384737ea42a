package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger pairs a zap logger with an observer for assertions.
type TestLogger struct {
	*zap.Logger
	Observed *observer.ObservedLogs
}

// NewTestLogger creates an in-memory logger capturing all levels.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger:   zap.New(core),
		Observed: observed,
	}
}
