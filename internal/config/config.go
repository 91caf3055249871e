package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/pilgrim-map/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Auth   AuthConfig   `yaml:"auth" mapstructure:"auth"`
	Admin  AdminConfig  `yaml:"admin" mapstructure:"admin"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`             // postgres | sqlite
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"` // DSN or SQLite file path
	Layout      string        `yaml:"layout" mapstructure:"layout"`             // auto | blob | discrete
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	TrustProxy      bool          `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// AuthConfig configures admin sessions and login throttling.
type AuthConfig struct {
	RequireSessionForWrites bool          `yaml:"require_session_for_writes" mapstructure:"require_session_for_writes"`
	SessionTTL              time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	LoginEvery              time.Duration `yaml:"login_every" mapstructure:"login_every"`
	LoginBurst              int           `yaml:"login_burst" mapstructure:"login_burst"`
}

// AdminConfig holds the credentials used by "admin setup".
type AdminConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ImportConfig configures the sites import command.
type ImportConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	DBFCharset  string `yaml:"dbf_charset" mapstructure:"dbf_charset"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PILGRIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.layout", "auto")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("store.pool.connect_retries", 5)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("auth.require_session_for_writes", true)
	v.SetDefault("auth.session_ttl", "30m")
	v.SetDefault("auth.login_every", "10s")
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("import.concurrency", 4)
	v.SetDefault("import.dbf_charset", "utf-8")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by a command mode are present.
// Modes: "store" (migrate, admin, sites) and "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "store":
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Auth.LoginBurst <= 0 {
			missing = append(missing, "auth.login_burst must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		missing = append(missing, fmt.Sprintf("store.driver %q is not postgres or sqlite", c.Store.Driver))
	}
	switch c.Store.Layout {
	case "", "auto", "blob", "discrete":
	default:
		missing = append(missing, fmt.Sprintf("store.layout %q is not auto, blob or discrete", c.Store.Layout))
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url is required")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
