package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/internal/testutil"
)

func TestMockLogger_Records(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("slice fetched", logging.String("condition", "asthma"))

	messages := logger.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "slice fetched", messages[0].Message)
	v, ok := messages[0].Field("condition")
	assert.True(t, ok)
	assert.Equal(t, "asthma", v)

	logger.Clear()
	assert.Empty(t, logger.Messages())

	logger.Error("persist failed")
	assert.True(t, logger.HasMessage("error", "persist failed"))
	assert.False(t, logger.HasMessage("info", "slice fetched"))
}

func TestMockLogger_WithSharesBuffer(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.With(logging.String("run_id", "r-1"))

	child.Warn("empty page")

	warns := logger.ByLevel("warn")
	require.Len(t, warns, 1)
	v, ok := warns[0].Field("run_id")
	assert.True(t, ok)
	assert.Equal(t, "r-1", v)
}
