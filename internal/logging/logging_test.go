package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "keepsake.log")

	lg, err := New(Config{Level: "debug", File: path, Console: false})
	require.NoError(t, err)

	lg.Info().Str("op", "insert").Msg("stored memory")
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stored memory"`)
	assert.Contains(t, string(data), `"op":"insert"`)
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	lg, err := New(Config{Level: "shouting", Console: false})
	require.NoError(t, err)
	defer lg.Close()

	assert.Equal(t, "info", lg.GetLevel().String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.Empty(t, cfg.File)
}
