package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Live     LiveConfig     `mapstructure:"live"`
	Download DownloadConfig `mapstructure:"download"`
	Channels []string       `mapstructure:"channels"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type APIConfig struct {
	WatchBaseURL   string `mapstructure:"watch_base_url"`
	TimeoutSec     int    `mapstructure:"timeout_sec"`
	RetryCount     int    `mapstructure:"retry_count"`
	RetryDelaySec  int    `mapstructure:"retry_delay_sec"`
	RatePerSecond  int    `mapstructure:"rate_per_second"`
	MaxRecordBytes int    `mapstructure:"max_record_bytes"`
}

type LiveConfig struct {
	MinPollIntervalSec int `mapstructure:"min_poll_interval_sec"`
	RestartDelaySec    int `mapstructure:"restart_delay_sec"`
}

type DownloadConfig struct {
	Workers       int  `mapstructure:"workers"`
	ResumeEnabled bool `mapstructure:"resume_enabled"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("api.watch_base_url", "https://live.nicovideo.jp")
	v.SetDefault("api.timeout_sec", 5)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.retry_delay_sec", 2)
	v.SetDefault("api.rate_per_second", 2)
	v.SetDefault("api.max_record_bytes", 16<<20)
	v.SetDefault("live.min_poll_interval_sec", 1)
	v.SetDefault("live.restart_delay_sec", 10)
	v.SetDefault("download.workers", 3)
	v.SetDefault("download.resume_enabled", true)
	v.SetDefault("output.directory", "data")
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("NDGR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Download.Workers < 1 {
		return fmt.Errorf("download.workers must be >= 1")
	}
	if c.API.RatePerSecond < 1 {
		return fmt.Errorf("api.rate_per_second must be >= 1")
	}
	if c.Live.MinPollIntervalSec < 1 {
		return fmt.Errorf("live.min_poll_interval_sec must be >= 1")
	}
	return nil
}
