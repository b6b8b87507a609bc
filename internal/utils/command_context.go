package utils

import (
	"context"

	"go.uber.org/zap"
)

const loggerContextKeyConstant = commandContextKey("logger")

type commandContextKey string

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithLogger attaches the command logger to the provided context.
func (accessor CommandContextAccessor) WithLogger(parentContext context.Context, logger *zap.Logger) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, loggerContextKeyConstant, logger)
}

// Logger returns the command logger, or a no-op logger when none was attached.
func (accessor CommandContextAccessor) Logger(executionContext context.Context) *zap.Logger {
	if executionContext == nil {
		return zap.NewNop()
	}
	logger, loggerAvailable := executionContext.Value(loggerContextKeyConstant).(*zap.Logger)
	if !loggerAvailable || logger == nil {
		return zap.NewNop()
	}
	return logger
}
