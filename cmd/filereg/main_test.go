package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_Script(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "filereg.log")
	cfgPath := writeFile(t, dir, "filereg.toml", "log_file = \""+logPath+"\"\n")
	script := writeFile(t, dir, "script.txt", "FILE_UPLOAD a 1\nFILE_GET a\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "-script", script}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Equal(t, "OK\r\nSIZE 1\r\n", stdout.String())
	assert.Empty(t, stderr.String())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "script finished")
}

func TestRun_FailureReturnsExitCode(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "filereg.log")
	cfgPath := writeFile(t, dir, "filereg.toml", "stop_on_error = true\nlog_file = \""+logPath+"\"\n")

	var stdout, stderr bytes.Buffer
	stdin := strings.NewReader("FILE_UPLOAD a 1\nFILE_UPLOAD a 1\nFILE_UPLOAD b 1\n")
	code := run(context.Background(), []string{"-config", cfgPath}, stdin, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "command failed: line 2")

	// Deferred cleanup ran: the summary reached the log before it was closed
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed=1")
}

func TestRun_MissingScript(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "filereg.toml", "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "-script", filepath.Join(dir, "nope")}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Failed to open script")
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "filereg.toml", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-config", cfgPath}, strings.NewReader("FILE_UPLOAD a 1\n"), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "context canceled")
	assert.Empty(t, stdout.String())
}
