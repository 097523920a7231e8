package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsSecretKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Info("connect", "api_key", "sk-123", "host", "localhost", "PG_PASSWORD", "pw")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "[REDACTED]", fields["api_key"])
		assert.Equal(t, "[REDACTED]", fields["PG_PASSWORD"])
		assert.Equal(t, "localhost", fields["host"])
	}
}

func TestWithKeepsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := (&Logger{SugaredLogger: zap.New(core).Sugar()}).With("component", "kb")

	l.Warn("slow batch", "batch", 3)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "kb", entries[0].ContextMap()["component"])
		assert.EqualValues(t, 3, entries[0].ContextMap()["batch"])
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil).SugaredLogger)
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
