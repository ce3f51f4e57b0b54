package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rongwang/marketplace-server/internal/models"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Driver       string `yaml:"driver"         env:"DB_DRIVER"         env-default:"postgres"`
	Host         string `yaml:"host"           env:"DB_HOST"           env-default:"localhost"`
	Port         int    `yaml:"port"           env:"DB_PORT"           env-default:"5432"`
	Username     string `yaml:"username"       env:"DB_USERNAME"       env-default:"postgres"`
	Password     string `yaml:"password"       env:"DB_PASSWORD"       env-default:"password"`
	DBName       string `yaml:"name"           env:"DB_NAME"           env-default:"marketplace"`
	SSLMode      string `yaml:"sslmode"        env:"DB_SSLMODE"        env-default:"disable"`
	TestDBName   string `yaml:"test_name"      env:"TEST_DB_NAME"      env-default:"marketplace_test"` // Separate database for testing
	SQLitePath   string `yaml:"sqlite_path"    env:"DB_SQLITE_PATH"    env-default:"data.db"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	Seed         bool   `yaml:"seed"           env:"DB_SEED"           env-default:"false"`
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"  env:"AUTH_TOKEN_TTL" env-default:"30m"`

	// Identity federation; disabled when ExternalSecret is empty.
	ExternalSecret string `yaml:"external_secret" env:"AUTH_EXTERNAL_SECRET"`
	ExternalIssuer string `yaml:"external_issuer" env:"AUTH_EXTERNAL_ISSUER"`
}

// LedgerConfig holds purchase settings
type LedgerConfig struct {
	StockMode string `yaml:"stock_mode" env:"LEDGER_STOCK_MODE" env-default:"finite"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == DriverSQLite {
		return sqliteDSN(c.SQLitePath)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// Mode returns the configured ledger stock mode.
func (c *LedgerConfig) Mode() models.StockMode {
	return models.StockMode(c.StockMode)
}

// LoadConfig reads the configuration from environment variables, optionally
// layered over the YAML file named by CONFIG_PATH.
func LoadConfig() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}

	switch c.Ledger.Mode() {
	case models.StockFinite, models.StockUnlimited:
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_STOCK_MODE %q", c.Ledger.StockMode))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
