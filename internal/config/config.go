package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the base name of the configuration file.
const ConfigFileName = "tangle"

// Config is the resolved application configuration.
type Config struct {
	// Debug enables verbose engine logging and batch tracing.
	Debug bool `mapstructure:"debug"`

	// Devtools contains introspection server settings.
	Devtools DevtoolsConfig `mapstructure:"devtools"`

	// Store contains signal persistence settings.
	Store StoreConfig `mapstructure:"store"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DevtoolsConfig configures the introspection server.
type DevtoolsConfig struct {
	// Enabled starts the devtools HTTP server.
	Enabled bool `mapstructure:"enabled"`

	// Addr is the devtools listen address.
	Addr string `mapstructure:"addr"`
}

// StoreConfig configures signal persistence.
type StoreConfig struct {
	// Path is the bbolt database file.
	Path string `mapstructure:"path"`
}

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("devtools.enabled", false)
	v.SetDefault("devtools.addr", "127.0.0.1:6363")
	v.SetDefault("store.path", "tangle.db")
	v.SetDefault("metrics.namespace", "tangle")
}

// Load reads tangle.yaml from the given directories (the working
// directory when none are given), applies TANGLE_* environment overrides,
// and validates the result. A missing config file is not an error; the
// defaults stand.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("TANGLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would fail later.
func (c *Config) Validate() error {
	if c.Devtools.Enabled {
		if _, _, err := net.SplitHostPort(c.Devtools.Addr); err != nil {
			return fmt.Errorf("invalid devtools.addr %q: %w", c.Devtools.Addr, err)
		}
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("metrics.namespace must not be empty")
	}
	return nil
}
