package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `http:
  addr: ":9000"
  history_token: "s3cret"
priorities:
  default_path: "conf/defaults.json"
  override_path: "state/override.json"
dispatch:
  unbound_rank_base: 50
  circuits:
    MCB_1: hospital_equipment
    MCB_2: auxiliary
metrics:
  sinks:
    - type: "nop"
logging:
  backend: sqlite
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "site/a/"
  qos:
    decision: 1
prediction:
  backend: linear
  model_path: "model.json"
telemetry:
  enabled: true
  timeout_seconds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"http.addr", cfg.HTTP.Addr, ":9000"},
		{"http.history_token", cfg.HTTP.HistoryToken, "s3cret"},
		{"priorities.default_path", cfg.Priorities.DefaultPath, "conf/defaults.json"},
		{"dispatch.unbound_rank_base", cfg.Dispatch.RankBase(), 50},
		{"dispatch.circuits", cfg.Dispatch.Circuits["MCB_2"], "auxiliary"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"logging.backend", cfg.Logging.Backend, "sqlite"},
		{"logging.path", cfg.Logging.Path, "data/decisions.db"},
		{"mqtt.enabled", cfg.MQTT.Enabled, true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.qos", cfg.MQTT.QoS["decision"], byte(1)},
		{"prediction.backend", cfg.Prediction.Backend, "linear"},
		{"telemetry.topic", cfg.Telemetry.Topic, "site/a/measurements"},
		{"telemetry.timeout", cfg.Telemetry.Timeout(), 5},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "config/default_priorities.json", cfg.Priorities.DefaultPath)
	assert.Equal(t, "data/priority_config.json", cfg.Priorities.OverridePath)
	assert.Equal(t, 100, cfg.Dispatch.RankBase())
	assert.Equal(t, "jsonl", cfg.Logging.Backend)
	assert.Equal(t, "none", cfg.Prediction.Backend)
	assert.Equal(t, "gridshed/measurements", cfg.Telemetry.Topic)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GS_HTTP__ADDR", ":7070")
	t.Setenv("GS_LOGGING__BACKEND", "rotating")
	path := writeConfig(t, "config.yaml", "http:\n  addr: \":9000\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "rotating", cfg.Logging.Backend)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
}

func TestLoadEnvExplicitZeroRankBase(t *testing.T) {
	t.Setenv("GS_DISPATCH__UNBOUND_RANK_BASE", "0")
	t.Setenv("GS_TELEMETRY__TOPIC", "site/b/measurements")
	cfg, err := Load(writeConfig(t, "config.yaml", "dispatch:\n  unbound_rank_base: 40\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Dispatch.UnboundRankBase)
	assert.Equal(t, 0, cfg.Dispatch.RankBase())
	assert.Equal(t, "site/b/measurements", cfg.Telemetry.Topic)
}

func TestLoadReportsEveryInvalidSection(t *testing.T) {
	path := writeConfig(t, "config.yaml", `logging:
  backend: csv
prediction:
  backend: linear
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend csv")
	assert.Contains(t, err.Error(), "model_path is required")
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPrioritiesPathsMustDiffer(t *testing.T) {
	c := PrioritiesConfig{DefaultPath: "a/p.json", OverridePath: "a/./p.json"}
	assert.Error(t, c.Validate())
}

func TestSentryDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	var c SentryConfig
	c.SetDefaults()
	assert.Equal(t, "dev", c.Environment)

	t.Setenv("APP_ENV", "")
	c = SentryConfig{}
	c.SetDefaults()
	assert.Equal(t, "production", c.Environment)

	assert.Error(t, SentryConfig{TracesSampleRate: 1.5}.Validate())
	assert.NoError(t, SentryConfig{TracesSampleRate: 0.2}.Validate())
}
