// Package config loads and validates the YAML configuration used by the
// tradefeed application and the capture recorder.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Stream  StreamConfig  `yaml:"stream"`
	Capture CaptureConfig `yaml:"capture"`
	Logging LoggingConfig `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type StreamConfig struct {
	// BaseURL is the websocket base, e.g. wss://ws.okx.com:8443/ws/v5.
	BaseURL          string          `yaml:"base_url"`
	PublicEndpoint   string          `yaml:"public_endpoint"`
	PrivateEndpoint  string          `yaml:"private_endpoint"`
	BusinessEndpoint string          `yaml:"business_endpoint"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	EventBuffer      int             `yaml:"event_buffer"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	Channels         []string        `yaml:"channels"`
	Symbols          []string        `yaml:"symbols"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type CaptureConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Directory     string        `yaml:"directory"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	S3            S3Config      `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	MaxAge           int    `yaml:"max_age"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// LoadConfig reads, defaults, overrides and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Stream: StreamConfig{
			BaseURL:          "wss://ws.okx.com:8443/ws/v5",
			PublicEndpoint:   "public",
			PrivateEndpoint:  "private",
			BusinessEndpoint: "business",
			HandshakeTimeout: 10 * time.Second,
			EventBuffer:      1024,
		},
		Capture: CaptureConfig{
			BatchSize:     500,
			FlushInterval: 30 * time.Second,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Capture.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Capture.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Capture.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Capture.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Capture.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Capture.S3.Bucket = strings.TrimSpace(config.Capture.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if cfg.Stream.BaseURL == "" {
		return fmt.Errorf("stream.base_url is required")
	}
	if !strings.HasPrefix(cfg.Stream.BaseURL, "ws://") && !strings.HasPrefix(cfg.Stream.BaseURL, "wss://") {
		return fmt.Errorf("stream.base_url '%s' must use the ws or wss scheme", cfg.Stream.BaseURL)
	}
	if cfg.Stream.EventBuffer <= 0 {
		return fmt.Errorf("stream.event_buffer must be greater than 0")
	}
	if cfg.Stream.HandshakeTimeout <= 0 {
		return fmt.Errorf("stream.handshake_timeout must be greater than 0")
	}
	if cfg.Stream.RateLimit.RequestsPerSecond < 0 || cfg.Stream.RateLimit.BurstSize < 0 {
		return fmt.Errorf("stream.rate_limit values must not be negative")
	}

	if cfg.Capture.Enabled {
		if cfg.Capture.Directory == "" && !cfg.Capture.S3.Enabled {
			return fmt.Errorf("capture requires a directory or an enabled S3 target")
		}
		if cfg.Capture.BatchSize <= 0 {
			return fmt.Errorf("capture.batch_size must be greater than 0")
		}
		if cfg.Capture.FlushInterval <= 0 {
			return fmt.Errorf("capture.flush_interval must be greater than 0")
		}
	}

	if cfg.Capture.S3.Enabled {
		if cfg.Capture.S3.Bucket == "" {
			return fmt.Errorf("capture.s3.bucket is required when S3 is enabled")
		}
		if cfg.Capture.S3.Region == "" {
			return fmt.Errorf("capture.s3.region is required when S3 is enabled")
		}
		if cfg.Capture.S3.AccessKeyID == "" || cfg.Capture.S3.SecretAccessKey == "" {
			return fmt.Errorf("capture.s3.access_key_id and capture.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Capture.S3.Bucket) {
			return fmt.Errorf("capture.s3.bucket '%s' is invalid", cfg.Capture.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
