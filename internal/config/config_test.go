package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "letter", cfg.DefaultPreset)
	assert.Equal(t, 12.0, cfg.SnapThreshold)
	assert.Equal(t, 60, cfg.HistoryDepth)
	assert.Equal(t, 1500*time.Millisecond, cfg.DecodeFallbackAfter)
	assert.Equal(t, 8*time.Second, cfg.DecodeTimeout)
	assert.Greater(t, cfg.BackgroundMaxBytes, cfg.ElementMaxBytes)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_PRESET", "a4")
	t.Setenv("HISTORY_DEPTH", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "a4", cfg.DefaultPreset)
	assert.Equal(t, 10, cfg.HistoryDepth)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DEFAULT_PRESET", "tabloid")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvertedCeilings(t *testing.T) {
	t.Setenv("ELEMENT_MAX_BYTES", "100")
	t.Setenv("BACKGROUND_MAX_BYTES", "50")
	_, err := Load()
	require.Error(t, err)
}

func TestOriginHosts(t *testing.T) {
	cfg := &Config{AllowedOrigins: "http://localhost:5173, https://portal.example.org ,"}
	assert.Equal(t, []string{"http://localhost:5173", "https://portal.example.org"}, cfg.Origins())
	assert.Equal(t, []string{"localhost:5173", "portal.example.org"}, cfg.OriginHosts())
}
