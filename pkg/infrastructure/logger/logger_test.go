package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(LevelDebug)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	ctx := WithContext(context.Background(), String("run_id", "r-1"))
	With(String("op", "test")).Info(ctx, "calculated", Int("requirements", 3))

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "calculated", entries[0].Message)
	assert.Equal(t, "r-1", fields["run_id"])
	assert.Equal(t, "test", fields["op"])
	assert.EqualValues(t, 3, fields["requirements"])
}

func TestInit_RejectsUnknownLevel(t *testing.T) {
	err := Init("verbose", false)
	require.Error(t, err)
}
