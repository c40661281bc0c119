package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("INFO") })

	SetLevel("debug")
	assert.True(t, IsDebugEnabled())

	SetLevel("WARN")
	assert.False(t, IsDebugEnabled())

	// unknown levels leave the current one alone
	SetLevel("verbose")
	assert.False(t, IsDebugEnabled())
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vfs.log")
	t.Cleanup(func() { _ = Init("INFO", "text", "stdout") })

	require.NoError(t, Init("INFO", "json", path))
	Debug("hidden %d", 1)
	Info("segment %d created", 42)
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"segment 42 created"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, Init("INFO", "xml", "stdout"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
