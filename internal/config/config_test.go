package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, 1, cfg.Admission.PerItemCostSeconds)
	require.Equal(t, 30, cfg.Admission.FixedBufferSeconds)
	require.Equal(t, "memory", cfg.Queue.Provider)
	require.Equal(t, "memory", cfg.Store.Provider)
	require.Equal(t, 10, cfg.Search.DefaultLimit)
	require.Equal(t, []string{"https://dashboard.atlas-search.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
auth:
  enabled: false
queue:
  provider: noop
admission:
  per_item_cost_seconds: 2
  fixed_buffer_seconds: 60
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Auth.Enabled)
	require.Equal(t, "noop", cfg.Queue.Provider)
	require.Equal(t, 2, cfg.Admission.PerItemCostSeconds)
	require.Equal(t, 60, cfg.Admission.FixedBufferSeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestValidate_Rules(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Admission.PerItemCostSeconds = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Queue.Provider = "rabbitmq"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Queue.Provider = "pubsub"
	require.Error(t, cfg.Validate(), "pubsub without topics must fail")
	cfg.Queue.PubSub.ProjectID = "proj"
	cfg.Queue.PubSub.HighTopic = "crawl-high"
	cfg.Queue.PubSub.LowTopic = "crawl-low"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Store.Provider = "postgres"
	require.Error(t, cfg.Validate(), "postgres without dsn must fail")
	cfg.Store.Postgres.DSN = "postgres://localhost/atlas"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Search.MaxLimit = 5
	cfg.Search.DefaultLimit = 10
	require.Error(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SEARCHCORE_SERVER_PORT", "7777")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7777, cfg.Server.Port)
}
