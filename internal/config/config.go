package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	TargetsFile string `mapstructure:"targets_file"`
	Target      string `mapstructure:"target"`
	GatewayHost string `mapstructure:"gateway_host"`
	GatewayPort int    `mapstructure:"gateway_port"`
	Function    string `mapstructure:"function"`
	Format      string `mapstructure:"format"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	WatchIntervalSeconds  int64         `mapstructure:"watch_interval_seconds"`
	WatchInterval         time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`
}

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"targets-file":    "targets_file",
	"target":          "target",
	"host":            "gateway_host",
	"port":            "gateway_port",
	"function":        "function",
	"format":          "format",
	"timeout":         "request_timeout_seconds",
	"watch":           "watch_interval_seconds",
	"storage":         "storage_type",
	"bbolt-path":      "bbolt_path",
	"publishers-file": "publishers_file",
}

// EnvPrefix namespaces the environment layer: target is read from RESTCLIENT_TARGET.
const EnvPrefix = "RESTCLIENT"

// Load reads configuration from environment variables, config files and the
// given flag set. Only flags the user actually set override lower layers.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "restful-probe")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "warn")
	v.SetDefault("targets_file", "")
	v.SetDefault("target", "get_class_c")
	v.SetDefault("gateway_host", "")
	v.SetDefault("gateway_port", 0)
	v.SetDefault("function", "")
	v.SetDefault("format", "")
	v.SetDefault("request_timeout_seconds", 0) // no timeout
	v.SetDefault("watch_interval_seconds", 0)  // one-shot
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/probes.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("publishers_file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.GatewayPort < 0 || cfg.GatewayPort > 65535 {
		return nil, fmt.Errorf("invalid gateway_port %d", cfg.GatewayPort)
	}
	if cfg.RequestTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.WatchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid watch_interval_seconds (must be zero or positive seconds)")
	}
	cfg.WatchInterval = time.Duration(cfg.WatchIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
