package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/utils"
)

func TestCommandContextAccessorRoundTrip(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	require.NotNil(testInstance, accessor.Logger(context.Background()))
	require.NotNil(testInstance, accessor.Logger(accessor.WithLogger(context.Background(), nil)))

	logger := zap.NewExample()
	executionContext := accessor.WithLogger(context.Background(), logger)
	require.Same(testInstance, logger, accessor.Logger(executionContext))
}
