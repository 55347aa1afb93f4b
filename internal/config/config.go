package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Rates      RatesConfig      `yaml:"rates"`
	S3         S3Config         `yaml:"s3"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Uploader   UploaderConfig   `yaml:"uploader"`
}

// CaptureConfig holds the capture-feed ingress configuration
type CaptureConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HealthAddr string `yaml:"health_addr"`
}

// DispatcherConfig holds routing configuration
type DispatcherConfig struct {
	Verbose bool `yaml:"verbose"` // log unparsable/unknown inbound payloads
}

// RatesConfig holds the currency conversion cache configuration
type RatesConfig struct {
	URL        string `yaml:"url"`         // rate table endpoint, empty disables conversion
	TTLMinutes int    `yaml:"ttl_minutes"` // cache freshness window
}

// TTL returns the cache freshness window as a duration.
func (r RatesConfig) TTL() time.Duration {
	return time.Duration(r.TTLMinutes) * time.Minute
}

// S3Config holds S3 upload configuration
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	RoleARN         string `yaml:"role_arn"`          // IAM role ARN for OIDC authentication
	AccessKeyID     string `yaml:"access_key_id"`     // Legacy: static credentials
	SecretAccessKey string `yaml:"secret_access_key"` // Legacy: static credentials
	Endpoint        string `yaml:"endpoint"`          // For S3-compatible services
}

// RecorderConfig holds recorder configuration
type RecorderConfig struct {
	OutputDir       string `yaml:"output_dir"`
	RotateMinutes   int    `yaml:"rotate_minutes"`
	RotateMegabytes int    `yaml:"rotate_megabytes"`
	BufferSize      int    `yaml:"buffer_size"`
}

// UploaderConfig holds uploader configuration
type UploaderConfig struct {
	Enabled           bool `yaml:"enabled"`
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
	MaxRetries        int  `yaml:"max_retries"`
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply environment variable overrides
	if addr := os.Getenv("CAPTURE_LISTEN_ADDR"); addr != "" {
		cfg.Capture.ListenAddr = addr
	}
	if roleARN := os.Getenv("AWS_ROLE_ARN"); roleARN != "" {
		cfg.S3.RoleARN = roleARN
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		cfg.S3.AccessKeyID = keyID
	}
	if secretKey := os.Getenv("S3_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.S3.SecretAccessKey = secretKey
	}
	if os.Getenv("DISPATCH_VERBOSE") == "1" {
		cfg.Dispatcher.Verbose = true
	}

	// Set defaults
	if cfg.Capture.ListenAddr == "" {
		cfg.Capture.ListenAddr = ":8787"
	}
	if cfg.Capture.HealthAddr == "" {
		cfg.Capture.HealthAddr = ":8080"
	}
	if cfg.Rates.TTLMinutes == 0 {
		cfg.Rates.TTLMinutes = 60
	}
	if cfg.Recorder.BufferSize == 0 {
		cfg.Recorder.BufferSize = 100
	}
	if cfg.Recorder.RotateMinutes == 0 {
		cfg.Recorder.RotateMinutes = 60
	}
	if cfg.Recorder.RotateMegabytes == 0 {
		cfg.Recorder.RotateMegabytes = 100
	}
	if cfg.Recorder.OutputDir == "" {
		cfg.Recorder.OutputDir = "./data"
	}
	if cfg.Uploader.MaxRetries == 0 {
		cfg.Uploader.MaxRetries = 3
	}

	// Validate upload settings only when uploading is on
	if cfg.Uploader.Enabled {
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3.bucket is required when uploader is enabled")
		}
		if cfg.S3.Region == "" {
			return nil, fmt.Errorf("s3.region is required when uploader is enabled")
		}
		if cfg.S3.RoleARN == "" && cfg.S3.AccessKeyID == "" {
			return nil, fmt.Errorf("either s3.role_arn (OIDC) or s3.access_key_id (legacy) is required")
		}
		if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3.secret_access_key is required when using access_key_id")
		}
	}

	return &cfg, nil
}
