package relayserver

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config controls the reference relay.
type Config struct {
	Listen  string
	Metrics bool
	Rate    RateConfig
	Log     LogConfig
}

// RateConfig sets the per-identity token bucket; zero disables limiting.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig mirrors logging.Config for the relay binary.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig is used for any key the file and environment leave unset.
func DefaultConfig() Config {
	return Config{
		Listen:  ":8080",
		Metrics: true,
		Rate:    RateConfig{RPS: 5, Burst: 20},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path (when non-empty) over the defaults, then applies
// HEARTX_RELAY_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read relay config %s", path)
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, errors.Wrapf(err, "parse relay config %s", path)
		}
		merge(&cfg, parsed)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig is the on-disk shape; pointers mark keys that were present.
type fileConfig struct {
	Listen  string     `yaml:"listen"`
	Metrics *bool      `yaml:"metrics"`
	Rate    RateConfig `yaml:"rate"`
	Log     LogConfig  `yaml:"log"`
}

func merge(dst *Config, src fileConfig) {
	if src.Listen != "" {
		dst.Listen = src.Listen
	}
	if src.Rate.RPS != 0 {
		dst.Rate.RPS = src.Rate.RPS
	}
	if src.Rate.Burst != 0 {
		dst.Rate.Burst = src.Rate.Burst
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.Metrics != nil {
		dst.Metrics = *src.Metrics
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("HEARTX_RELAY_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("HEARTX_RELAY_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("HEARTX_RELAY_RATE_RPS")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "HEARTX_RELAY_RATE_RPS")
		}
		cfg.Rate.RPS = rps
	}
	if v := strings.TrimSpace(os.Getenv("HEARTX_RELAY_METRICS")); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "HEARTX_RELAY_METRICS")
		}
		cfg.Metrics = on
	}
	return nil
}
