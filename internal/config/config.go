package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends selectable with --db-backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
)

type Config struct {
	Env            string        `mapstructure:"env"`
	ListenAddr     string        `mapstructure:"listen-addr"`
	DBBackend      string        `mapstructure:"db-backend"`
	DatabaseURL    string        `mapstructure:"database-url"`
	RegradeWorkers int           `mapstructure:"regrade-workers"`
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	OverflowPolicy string        `mapstructure:"overflow-policy"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
}

// NewViper returns a viper instance reading .gradekey.yaml from the working
// or home directory and GRADEKEY_* environment variables. DATABASE_URL is
// honoured as a fallback for GRADEKEY_DATABASE_URL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(".gradekey")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("GRADEKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database-url", "GRADEKEY_DATABASE_URL", "DATABASE_URL")

	SetDefaults(v)
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("listen-addr", ":8080")
	v.SetDefault("db-backend", BackendPostgres)
	v.SetDefault("database-url", "")
	v.SetDefault("regrade-workers", 2)
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("overflow-policy", "worst")
	v.SetDefault("allowed-origins", []string{"*"})
}

// Load merges defaults, config file, environment and bound flags. A missing
// config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.DBBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.DatabaseURL == "" {
			c.DatabaseURL = "gradekey.db"
		}
	case BackendPostgres, BackendMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database-url not set for %s backend", c.DBBackend)
		}
	default:
		return fmt.Errorf("unknown db-backend %q (want memory, postgres, sqlite or mysql)", c.DBBackend)
	}
	if c.OverflowPolicy != "worst" && c.OverflowPolicy != "best" {
		return fmt.Errorf("unknown overflow-policy %q (want worst or best)", c.OverflowPolicy)
	}
	if c.RegradeWorkers < 0 {
		return fmt.Errorf("regrade-workers must not be negative, got %d", c.RegradeWorkers)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return nil
}
