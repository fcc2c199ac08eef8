package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pemasak/pws/internal/core/deployment"
	"github.com/pemasak/pws/internal/core/limits"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Docker   DockerConfig   `mapstructure:"docker"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Domain   DomainConfig   `mapstructure:"domain"`
	Network  NetworkConfig  `mapstructure:"network"`
	Traefik  TraefikConfig  `mapstructure:"traefik"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Build    BuildConfig    `mapstructure:"build"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
	Lock     LockConfig     `mapstructure:"lock"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DockerConfig holds container engine configuration.
type DockerConfig struct {
	Host   string `mapstructure:"host"`
	Binary string `mapstructure:"binary"` // build CLI
}

// DatabaseConfig holds project store configuration.
type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"` // sqlite3 or pgx
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DomainConfig holds routing domain configuration.
type DomainConfig struct {
	BaseDomain string `mapstructure:"base_domain"`
}

// NetworkConfig holds shared network configuration.
type NetworkConfig struct {
	Name          string `mapstructure:"name"`
	Driver        string `mapstructure:"driver"`
	DefaultBridge string `mapstructure:"default_bridge"`
}

// TraefikConfig holds reverse proxy label configuration.
type TraefikConfig struct {
	EntryPoint   string `mapstructure:"entrypoint"`
	CertResolver string `mapstructure:"cert_resolver"`
}

// LimitsConfig holds resource ceilings. Sizes accept human units ("256MiB").
type LimitsConfig struct {
	Memory     string `mapstructure:"memory"`
	MemorySwap string `mapstructure:"memory_swap"`
	CPUQuota   int64  `mapstructure:"cpu_quota"`
	CPUPeriod  int64  `mapstructure:"cpu_period"`
}

// BuildConfig holds image build configuration.
type BuildConfig struct {
	TempDir string `mapstructure:"temp_dir"`
	Pull    bool   `mapstructure:"pull"`
}

// DeployConfig holds orchestrator policy.
type DeployConfig struct {
	TeardownOnFailure bool `mapstructure:"teardown_on_failure"`
}

// LockConfig holds cross-process locking configuration.
type LockConfig struct {
	Dir string `mapstructure:"dir"` // file locking disabled when empty
}

// MetricsConfig holds Pushgateway configuration.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ResourceLimits converts the configured ceilings and validates them.
func (c *Config) ResourceLimits() (deployment.Limits, error) {
	memory, err := limits.ParseSize(c.Limits.Memory)
	if err != nil {
		return deployment.Limits{}, fmt.Errorf("limits.memory: %w", err)
	}
	swap, err := limits.ParseSize(c.Limits.MemorySwap)
	if err != nil {
		return deployment.Limits{}, fmt.Errorf("limits.memory_swap: %w", err)
	}

	l := deployment.Limits{
		MemoryBytes: memory,
		SwapBytes:   swap,
		CPUQuota:    c.Limits.CPUQuota,
		CPUPeriod:   c.Limits.CPUPeriod,
	}.WithDefaults()

	if result := limits.Validate(l); !result.Ok() {
		return deployment.Limits{}, result.Error()
	}
	return l, nil
}

// =============================================================================
// Config Loading
// =============================================================================

// flagBindings maps command line flags to config keys.
var flagBindings = map[string]string{
	"log-level":           "log.level",
	"teardown-on-failure": "deploy.teardown_on_failure",
	"pull":                "build.pull",
}

// LoadConfig loads configuration from file, environment and flags.
// Flags that were not set on the command line do not override anything.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.binary", "docker")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/pws.db")
	v.SetDefault("database.migrate", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("domain.base_domain", "localhost")
	v.SetDefault("network.name", "pemasak")
	v.SetDefault("network.driver", "bridge")
	v.SetDefault("network.default_bridge", "bridge")
	v.SetDefault("traefik.entrypoint", "websecure")
	v.SetDefault("traefik.cert_resolver", "letsencrypt")
	v.SetDefault("limits.memory", "256MiB")
	v.SetDefault("limits.memory_swap", "320MiB")
	v.SetDefault("limits.cpu_quota", 50000)
	v.SetDefault("limits.cpu_period", 100000)
	v.SetDefault("build.temp_dir", "")
	v.SetDefault("build.pull", false)
	v.SetDefault("deploy.teardown_on_failure", false)
	v.SetDefault("lock.dir", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "pws_deploy")

	// An explicitly named file must exist and parse
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("PWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to stderr so stdout carries only command output.
func SetupLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
