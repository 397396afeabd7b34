package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PROCWATCH_LIMIT.
	EnvPrefix = "PROCWATCH"

	configName = "process-watcher"
)

// S3Config holds optional static credentials for s3:// destinations. When
// empty the AWS default credential chain is used.
type S3Config struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// Config holds all run configuration
type Config struct {
	// Report shape
	Output            string `mapstructure:"output"`
	File              string `mapstructure:"file"`
	Advanced          bool   `mapstructure:"advanced"`
	ShowDenied        bool   `mapstructure:"show_denied"`
	IncludeSystemInfo bool   `mapstructure:"include_system_info"`
	Limit             int    `mapstructure:"limit"`

	// Run mode
	Automation bool `mapstructure:"automation"`
	Verbose    bool `mapstructure:"verbose"`
	Workers    int  `mapstructure:"workers"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	S3 S3Config `mapstructure:"s3"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output:    "json",
		Limit:     100,
		Workers:   1,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads defaults, the optional config file, PROCWATCH_* environment
// variables and any flags already bound on v. cfgFile overrides the config
// file search.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("output", cfg.Output)
	v.SetDefault("file", cfg.File)
	v.SetDefault("advanced", cfg.Advanced)
	v.SetDefault("show_denied", cfg.ShowDenied)
	v.SetDefault("include_system_info", cfg.IncludeSystemInfo)
	v.SetDefault("limit", cfg.Limit)
	v.SetDefault("automation", cfg.Automation)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.session_token", "")
}

// getConfigDir returns the platform-specific config directory
func getConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ProcessWatcher")
	case "darwin":
		return "/Library/Application Support/ProcessWatcher"
	default:
		return "/etc/process-watcher"
	}
}
