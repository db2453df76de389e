package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "OPDS"

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	CatalogURL string `mapstructure:"catalog_url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`

	MaxPages int `mapstructure:"max_pages"`
	MaxDepth int `mapstructure:"max_depth"`

	ParseConcurrency int  `mapstructure:"parse_concurrency"`
	Strict           bool `mapstructure:"strict"`
	BatchSize        int  `mapstructure:"batch_size"`

	// StateBackend selects the status store: "file" or "sqlite".
	StateBackend string `mapstructure:"state_backend"`
	StatePath    string `mapstructure:"state_path"`
	DatabaseDSN  string `mapstructure:"database_dsn"`

	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	HTTPRetries     int           `mapstructure:"http_retries"`
	MaxContentBytes int64         `mapstructure:"max_content_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("catalog_url", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("max_pages", 50)
	v.SetDefault("max_depth", 3)
	v.SetDefault("parse_concurrency", 0)
	v.SetDefault("strict", false)
	v.SetDefault("batch_size", 0)
	v.SetDefault("state_backend", "file")
	v.SetDefault("state_path", "opdscore_state.json")
	v.SetDefault("database_dsn", "file:opdscore.db?cache=shared")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("http_retries", 2)
	v.SetDefault("max_content_bytes", int64(50*1024*1024))
}

// Load reads configuration from defaults, the optional config file at path and
// OPDS_* environment variables, in increasing precedence. Flags bound to v by
// the caller take precedence over all of them.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxPages < 1 {
		return fmt.Errorf("OPDS_MAX_PAGES must be at least 1")
	}

	if c.MaxDepth < 0 {
		return fmt.Errorf("OPDS_MAX_DEPTH cannot be negative")
	}

	if c.ParseConcurrency < 0 {
		return fmt.Errorf("OPDS_PARSE_CONCURRENCY cannot be negative")
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("OPDS_BATCH_SIZE cannot be negative")
	}

	switch c.StateBackend {
	case "file":
		if c.StatePath == "" {
			return fmt.Errorf("OPDS_STATE_PATH is required when OPDS_STATE_BACKEND is file")
		}
	case "sqlite":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("OPDS_DATABASE_DSN is required when OPDS_STATE_BACKEND is sqlite")
		}
	default:
		return fmt.Errorf("OPDS_STATE_BACKEND must be file or sqlite, got %q", c.StateBackend)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("OPDS_HTTP_TIMEOUT must be positive")
	}

	if c.HTTPRetries < 0 {
		return fmt.Errorf("OPDS_HTTP_RETRIES cannot be negative")
	}

	if c.MaxContentBytes <= 0 {
		return fmt.Errorf("OPDS_MAX_CONTENT_BYTES must be positive")
	}

	return nil
}

// RequireCatalog reports an error when no catalog URL is configured. Commands
// that talk to a server call it; offline commands do not.
func (c *Config) RequireCatalog() error {
	if c.CatalogURL == "" {
		return fmt.Errorf("OPDS_CATALOG_URL is required")
	}
	return nil
}
