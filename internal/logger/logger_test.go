package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/drydock/internal/config"
)

func TestConfigure_FileAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drydock.log")
	Configure(config.LogConfig{Level: "warn", File: path})
	t.Cleanup(func() { Configure(config.LogConfig{}) })

	log := Component("planner")
	log.Info().Msg("dropped")
	log.Warn().Uint("plan_id", 7).Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"component":"planner"`)
	assert.Contains(t, out, `"plan_id":7`)
}

func TestConfigure_BadLevelFallsBackToInfo(t *testing.T) {
	Configure(config.LogConfig{Level: "loud"})
	t.Cleanup(func() { Configure(config.LogConfig{}) })

	l := Component("x")
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
