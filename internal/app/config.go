package app

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"heartx/internal/crypto"
	"heartx/internal/domain"
)

const (
	envPrefix      = "HEARTX"
	configName     = "config"
	defaultHomeDir = ".heartx"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home      string           `mapstructure:"home"`
	Identity  domain.Identity  `mapstructure:"identity"`
	Token     string           `mapstructure:"token"`
	SenderTag domain.SenderTag `mapstructure:"sender_tag"`

	Relay     RelayConfig     `mapstructure:"relay"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Poll      PollConfig      `mapstructure:"poll"`
	Heart     HeartConfig     `mapstructure:"heart"`
	Log       LogConfig       `mapstructure:"log"`

	// HTTP is optional; defaults to a client with Relay.Timeout.
	HTTP *http.Client `mapstructure:"-"`
}

type RelayConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DirectoryConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// HeartConfig selects the self-signature primitive: "raw" or "hkdf".
type HeartConfig struct {
	SelfSignature string `mapstructure:"self_signature"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"home":     "home",
	"identity": "identity",
	"token":    "token",
	"relay":    "relay.url",
	"log":      "log.level",
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("home", filepath.Join(home, defaultHomeDir))
	v.SetDefault("identity", "")
	v.SetDefault("token", "")
	v.SetDefault("sender_tag", "")
	v.SetDefault("relay.url", "http://127.0.0.1:8080")
	v.SetDefault("relay.timeout", "10s")
	v.SetDefault("directory.max_entries", 1024)
	v.SetDefault("directory.ttl", "10m")
	v.SetDefault("directory.max_age", "24h")
	v.SetDefault("poll.interval", "30s")
	v.SetDefault("heart.self_signature", crypto.SelfSealRaw)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig merges defaults, <home>/config.yaml, HEARTX_* environment
// variables and flags, in increasing precedence. flags may be nil.
func LoadConfig(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(v.GetString("home"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "create decoder")
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and obscurely.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("home must be set")
	}
	u, err := url.Parse(c.Relay.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("relay.url %q is not an http(s) URL", c.Relay.URL)
	}
	if crypto.SelfSealerByName(c.Heart.SelfSignature) == nil {
		return errors.Errorf("heart.self_signature %q must be raw or hkdf", c.Heart.SelfSignature)
	}
	for name, d := range map[string]time.Duration{
		"relay.timeout":     c.Relay.Timeout,
		"directory.ttl":     c.Directory.TTL,
		"directory.max_age": c.Directory.MaxAge,
		"poll.interval":     c.Poll.Interval,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive", name)
		}
	}
	if c.Directory.MaxEntries <= 0 {
		return errors.New("directory.max_entries must be positive")
	}
	return nil
}
