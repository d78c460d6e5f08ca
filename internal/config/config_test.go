package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, "openai", cfg.Provider)
	require.Equal(t, 5, cfg.Memory.MaxItems)
	require.True(t, cfg.Memory.FastPath)
	require.Greater(t, cfg.Memory.HalfLifeDays, 0.0)
}

func TestLoadProjectOverride(t *testing.T) {
	dir := t.TempDir()
	data := `{"model":"local-model","memory":{"topKCandidates":7,"maxItems":2,"minSimilarity":0.4,"halfLifeDays":10,"excludeRounds":1,"historyLimit":8,"includeAiOutput":false,"fastPath":false,"warmupTurns":1}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(data), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "local-model", cfg.Model)
	require.Equal(t, 2, cfg.Memory.MaxItems)
	require.False(t, cfg.Memory.IncludeAIOutput)
	require.False(t, cfg.Memory.FastPath)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AIKO_MODEL", "env-model")
	t.Setenv("AIKO_FAST_PATH", "false")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "env-model", cfg.Model)
	require.False(t, cfg.Memory.FastPath)
}
