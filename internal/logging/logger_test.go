package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestSetOutput_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "WARN")

	L().Info("hidden")
	L().Warn("shown", "name", "a.txt")

	// The process default follows the same output
	slog.Warn("via default")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "name=a.txt")
	assert.Contains(t, out, "via default")
}

func TestInitLogger_ReleasesFileOnReinit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filereg.log")
	require.NoError(t, InitLogger(path, "INFO"))
	require.NotNil(t, logFile)
	first := logFile

	require.NoError(t, InitLogger("", "INFO"))
	assert.Nil(t, logFile)
	// The earlier handle was closed, not leaked
	assert.Error(t, first.Close())

	require.NoError(t, InitLogger(path, "INFO"))
	require.NotNil(t, logFile)
	second := logFile

	var buf bytes.Buffer
	SetOutput(&buf, "INFO")
	assert.Nil(t, logFile)
	assert.Error(t, second.Close())
}

func TestInitLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "filereg.log")
	require.NoError(t, InitLogger(path, "INFO"))
	defer CloseLogger()

	L().Info("rollback applied", "kept", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rollback applied")
	assert.Contains(t, string(data), "kept=3")
}
