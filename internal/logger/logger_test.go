package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesLogDirectoryAndCurrentLog(t *testing.T) {
	workDir := t.TempDir()
	l, err := New(workDir, slog.LevelInfo, "simple")
	require.NoError(t, err)
	defer l.Close()

	_, statErr := os.Stat(filepath.Join(workDir, ".ikigai", "logs", "current.log"))
	assert.NoError(t, statErr)
}

func TestReinitRotatesCurrentLogToTimestampedFile(t *testing.T) {
	workDir := t.TempDir()
	l, err := New(workDir, slog.LevelInfo, "simple")
	require.NoError(t, err)
	defer l.Close()

	l.Slog().Info("before rotation")

	rotateTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, l.Reinit(rotateTime))

	rotatedPath := filepath.Join(workDir, ".ikigai", "logs", "current.20260102T030405.log")
	_, statErr := os.Stat(rotatedPath)
	assert.NoError(t, statErr, "rotated file should exist")

	_, statErr = os.Stat(filepath.Join(workDir, ".ikigai", "logs", "current.log"))
	assert.NoError(t, statErr, "a fresh current.log should exist after reinit")
}

func TestParseLevelMapsKnownStrings(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("bogus"))
}
