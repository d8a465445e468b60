package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesCategoryToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "stratege.log")
	l, err := New(Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	l.Get(CategoryWizard).Info("transition", zap.String("to", "objectifs"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"logger":"wizard"`), string(data))
	assert.True(t, strings.Contains(string(data), `"to":"objectifs"`))
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))
	l.SetCategories(map[string]bool{"api": false})

	l.Get(CategoryAPI).Info("hidden")
	l.Get(CategoryStore).Info("visible")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "visible", logs.All()[0].Message)
	assert.True(t, l.IsCategoryEnabled(CategoryUI), "unlisted categories default to enabled")
}

func TestSetLevel(t *testing.T) {
	l, err := New(Options{Level: "info", File: filepath.Join(t.TempDir(), "x.log")})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l.Level())

	require.NoError(t, l.SetLevel("warning"))
	assert.Equal(t, zapcore.WarnLevel, l.Level())
}

func TestTimer_StopWithThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	timer := StartTimer(zap.New(core), "generate-plan")
	timer.StopWithThreshold(-1)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestNonFatal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	NonFatal(log, "refresh catalog", nil)
	assert.Equal(t, 0, logs.Len())

	NonFatal(log, "refresh catalog", assert.AnError)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "refresh catalog", entry.ContextMap()["op"])
}
