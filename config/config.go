package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"

	"github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/core/metrics"
	"github.com/kilianp07/gridshed/infra/mqtt"
)

// EnvPrefix is the prefix of environment overrides. GS_HTTP__ADDR overrides
// http.addr.
const EnvPrefix = "GS_"

type Config struct {
	HTTP       HTTPConfig       `json:"http"`
	Priorities PrioritiesConfig `json:"priorities"`
	Dispatch   dispatch.Config  `json:"dispatch"`
	Metrics    metrics.Config   `json:"metrics"`
	Logging    LoggingConfig    `json:"logging"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Sentry     SentryConfig     `json:"sentry"`
	Prediction PredictionConfig `json:"prediction"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// HistoryToken protects the decision history endpoint when set.
	HistoryToken string `json:"history_token"`
}

// PrioritiesConfig locates the default and override priority documents.
type PrioritiesConfig struct {
	DefaultPath  string `json:"default_path"`
	OverridePath string `json:"override_path"`
}

// PredictionConfig selects the advisory predictor.
type PredictionConfig struct {
	// Backend is "none", "heuristic" or "linear".
	Backend   string `json:"backend"`
	ModelPath string `json:"model_path"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func (c *PrioritiesConfig) SetDefaults() {
	if c.DefaultPath == "" {
		c.DefaultPath = "config/default_priorities.json"
	}
	if c.OverridePath == "" {
		c.OverridePath = "data/priority_config.json"
	}
}

func (c PrioritiesConfig) Validate() error {
	if filepath.Clean(c.DefaultPath) == filepath.Clean(c.OverridePath) {
		return fmt.Errorf("priorities: override_path must differ from default_path")
	}
	return nil
}

func (c *PredictionConfig) SetDefaults() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "none"
	}
}

func (c PredictionConfig) Validate() error {
	switch c.Backend {
	case "none", "heuristic":
		return nil
	case "linear":
		if c.ModelPath == "" {
			return fmt.Errorf("prediction: model_path is required for the linear backend")
		}
		return nil
	default:
		return fmt.Errorf("prediction: unknown backend %s", c.Backend)
	}
}

// Default returns a configuration with every section defaulted.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.Priorities.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Logging.SetDefaults()
	c.Prediction.SetDefaults()
	c.Sentry.SetDefaults()
	if c.Telemetry.Topic == "" {
		prefix := strings.TrimSuffix(c.MQTT.TopicPrefix, "/")
		if prefix != "" {
			c.Telemetry.Topic = prefix + "/measurements"
		}
	}
	c.Telemetry.SetDefaults()
}

// Validate reports every invalid section at once.
func (c *Config) Validate() error {
	return multierr.Combine(
		c.Priorities.Validate(),
		c.Logging.Validate(),
		c.Prediction.Validate(),
		c.Sentry.Validate(),
		c.Telemetry.Validate(),
	)
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// GS_HTTP__ADDR -> http.addr. The callback already produces koanf's
	// delimiter, so the provider must split on "." too.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
