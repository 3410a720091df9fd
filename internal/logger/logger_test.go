package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPackageLevelHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Info("account created", map[string]any{"username": "u"})
	Warn("relinking account", nil)
	Error("resolve failed", map[string]any{"error": errors.New("boom")})

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "account created", entries[0].Message)
	assert.Equal(t, "u", entries[0].ContextMap()["username"])

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Empty(t, entries[1].Context)

	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}

func TestSetNilFallsBackToNop(t *testing.T) {
	Set(nil)
	assert.NotPanics(t, func() {
		Info("discarded", map[string]any{"k": "v"})
		L().Info("also discarded")
	})
}
