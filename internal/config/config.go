// Package config loads service configuration from a YAML file, an optional
// .env file and NEXUS_* environment variables, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/nexus-webapi/nexus/internal/security"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when neither a flag nor NEXUS_CONFIG names a file.
	DefaultConfigPath = "config.yaml"
	// ConfigPathEnv names the environment variable that points at the config file.
	ConfigPathEnv = "NEXUS_CONFIG"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "NEXUS"
	// MinSecretLength is the minimum HS256 secret size in bytes.
	MinSecretLength = 32
)

// AppConfig carries process-level inputs resolved by the CLI.
type AppConfig struct {
	ConfigPath string
	EnvFile    string
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	JWT      JWTConfig      `yaml:"jwt" envconfig:"JWT"`
	Sweeper  SweeperConfig  `yaml:"sweeper" envconfig:"SWEEPER"`
	Redis    RedisConfig    `yaml:"redis" envconfig:"REDIS"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	Mode            string        `yaml:"mode" envconfig:"MODE"` // gin mode: debug, release or test
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	TrustedProxies  []string      `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES"`

	// AttemptsPerMinute caps door attempts per client address; 0 disables the cap.
	AttemptsPerMinute int `yaml:"attempts_per_minute" envconfig:"ATTEMPTS_PER_MINUTE"`
}

// DatabaseConfig names the database to connect to.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

// JWTConfig configures session token signing.
type JWTConfig struct {
	Secret          string `yaml:"secret" envconfig:"SECRET"`
	LifetimeMinutes int    `yaml:"lifetime_minutes" envconfig:"LIFETIME_MINUTES"`
	Issuer          string `yaml:"issuer" envconfig:"ISSUER"`
	Audience        string `yaml:"audience" envconfig:"AUDIENCE"`
}

// TokenOptions converts the section into signing parameters.
func (c JWTConfig) TokenOptions() security.TokenOptions {
	return security.TokenOptions{
		Secret:   c.Secret,
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Lifetime: time.Duration(c.LifetimeMinutes) * time.Minute,
	}
}

// SweeperConfig configures the expired token sweeper.
type SweeperConfig struct {
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	LockKey  string        `yaml:"lock_key" envconfig:"LOCK_KEY"`
	LockTTL  time.Duration `yaml:"lock_ttl" envconfig:"LOCK_TTL"`
}

// RedisConfig configures the optional redis used for the sweep lock.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// Enabled reports whether a redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// LogConfig configures logrus and file rotation.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	Format     string `yaml:"format" envconfig:"FORMAT"` // text or json
	File       string `yaml:"file" envconfig:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" envconfig:"COMPRESS"`
}

// Default returns the configuration used for any value left unset.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			Mode:              "release",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			AttemptsPerMinute: 30,
		},
		JWT: JWTConfig{
			LifetimeMinutes: 60,
			Issuer:          "nexus",
			Audience:        "nexus-clients",
		},
		Sweeper: SweeperConfig{
			Interval: time.Hour,
			LockKey:  "nexus:token-sweeper:lock",
			LockTTL:  5 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// ResolveConfigPath picks the config file: explicit flag, then NEXUS_CONFIG, then the default.
func ResolveConfigPath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load builds a validated Config for app.
//
// A missing file is an error only when its path was given explicitly.
func Load(app AppConfig) (*Config, error) {
	cfg, errDecode := decode(app)
	if errDecode != nil {
		return nil, errDecode
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

// LoadDatabaseDSN returns only the database DSN, for commands that do not
// need a signing secret.
func LoadDatabaseDSN(app AppConfig) (string, error) {
	cfg, errDecode := decode(app)
	if errDecode != nil {
		return "", errDecode
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return "", errors.New("config: database.dsn is required")
	}
	return cfg.Database.DSN, nil
}

func decode(app AppConfig) (Config, error) {
	cfg := Default()

	envFile := strings.TrimSpace(app.EnvFile)
	if envFile == "" {
		envFile = ".env"
	}
	if errEnv := godotenv.Load(envFile); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: load %s: %w", envFile, errEnv)
	}

	path := ResolveConfigPath(app.ConfigPath)
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errYAML := yaml.Unmarshal(data, &cfg); errYAML != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, errYAML)
		}
	case errors.Is(errRead, os.ErrNotExist) && path == DefaultConfigPath:
	default:
		return cfg, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := envconfig.Process(EnvPrefix, &cfg); errEnv != nil {
		return cfg, fmt.Errorf("config: env: %w", errEnv)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if len(c.JWT.Secret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes", MinSecretLength))
	}
	if c.JWT.LifetimeMinutes <= 0 {
		errs = append(errs, errors.New("jwt.lifetime_minutes must be positive"))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("jwt.audience is required"))
	}
	if c.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("sweeper.interval must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}
