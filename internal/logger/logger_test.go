package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithCore(core)

	l.Info("pipeline", "batch tagged", map[string]interface{}{"clauses": 3})
	l.Error("index", "build failed", map[string]interface{}{"error": errors.New("disk full")})
	l.Warn("query", "nil details", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "batch tagged", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "pipeline", ctx["module"])

	ctx = entries[1].ContextMap()
	assert.Equal(t, "disk full", ctx["error"])

	assert.Equal(t, "query", entries[2].ContextMap()["module"])
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Debug("x", "y", nil)
	assert.NoError(t, l.Sync())
}
