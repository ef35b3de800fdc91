// Package config loads runtime configuration from an optional
// ripple.yaml and RIPPLE_* environment overrides.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything tunable at startup.
type Config struct {
	ListenAddr       string        `mapstructure:"listen_addr"`
	DataDir          string        `mapstructure:"data_dir"`
	DefaultPageSize  int           `mapstructure:"default_page_size"`
	MaxPageSize      int           `mapstructure:"max_page_size"`
	PreviewRoots     int           `mapstructure:"preview_roots"`
	FullThreadRoots  int           `mapstructure:"full_thread_roots"`
	MediaByteLimit   int64         `mapstructure:"media_byte_limit"`
	KeepAlive        time.Duration `mapstructure:"keep_alive"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
}

// Load reads configuration from the given file path (optional; "" means
// defaults plus environment only).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "data/badger")
	v.SetDefault("default_page_size", 20)
	v.SetDefault("max_page_size", 50)
	v.SetDefault("preview_roots", 3)
	v.SetDefault("full_thread_roots", 50)
	v.SetDefault("media_byte_limit", 8<<20)
	v.SetDefault("keep_alive", 25*time.Second)
	v.SetDefault("subscriber_buffer", 16)

	v.SetEnvPrefix("RIPPLE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("ripple")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
