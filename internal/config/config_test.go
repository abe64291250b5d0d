package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Miszion/riftbound-online-backend/internal/game"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, game.DefaultOptions(), cfg.Rules.Options())
	assert.Equal(t, []string{"ranked", "casual"}, cfg.Matchmaking.Modes)
	assert.Equal(t, 100, cfg.Matchmaking.Policy().Base)
	assert.NotEmpty(t, cfg.Matchmaking.Policy().Steps)
	assert.Equal(t, 256, cfg.Sync.SnapshotQueue)
	assert.Empty(t, cfg.Server.WebSocket.AllowedOrigins)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
server:
  websocket:
    allowed_origins: [https://play.example.com]
rules:
  victory_score: 11
  priority_window: 45s
matchmaking:
  modes: [ranked]
  base_tolerance: 50
  max_tolerance: 300
  flex_steps:
    - after: 20s
      tolerance: 120
`), 0o600))
	t.Setenv("RIFTBOUND_DATABASE_URL", "postgres://localhost/riftbound")
	t.Setenv("RIFTBOUND_RULES_OPENING_HAND", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 11, cfg.Rules.VictoryScore)
	assert.Equal(t, 45*time.Second, cfg.Rules.PriorityWindow)
	assert.Equal(t, 5, cfg.Rules.OpeningHand)
	assert.Equal(t, "postgres://localhost/riftbound", cfg.Database.URL)
	assert.Equal(t, []string{"https://play.example.com"}, cfg.Server.WebSocket.AllowedOrigins)

	p := cfg.Matchmaking.Policy()
	assert.Equal(t, 50, p.Base)
	assert.Equal(t, 300, p.Max)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, 20*time.Second, p.Steps[0].After)
	assert.Equal(t, 120, p.Allowed(time.Minute))
}

func TestValidateRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: loud
rules:
  main_deck_min: 50
  main_deck_max: 40
`), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "main deck bounds")
}
