package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. CITRUS_API_PORT
const EnvPrefix = "CITRUS"

// DefaultConfig returns a default configuration
func DefaultConfig() types.Config {
	return types.Config{
		Library: types.LibraryConfig{
			ReconcileOnActivate: true,
			ReconcileTimeout:    "10s",
			BlobDir:             "./blobs",
		},
		Store: types.StoreConfig{
			Driver:   types.DriverDuckDB,
			DBPath:   "./citrus.db",
			S3Prefix: "citrus",
			S3Region: "us-east-1",
		},
		Remote: types.RemoteConfig{
			BaseURL:        "http://localhost:5001",
			RequestTimeout: "30s",
		},
		API: types.APIConfig{
			Host:           "localhost",
			Port:           8086,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Scanner: types.ScannerConfig{
			Host:       "0.0.0.0",
			Port:       5001,
			StorageDir: "./storage",
			PageWidth:  2590,
			PageHeight: 3340,
		},
		Logging: types.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional JSON file and CITRUS_* environment
// variables. An empty path yields defaults plus environment overrides.
func Load(configPath string) (*types.Config, error) {
	v := newViper()

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Ensure on-disk paths are absolute
	if err := absolutize(&cfg.Store.DBPath); err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	if err := absolutize(&cfg.Library.BlobDir); err != nil {
		return nil, fmt.Errorf("failed to resolve blob dir: %w", err)
	}
	if err := absolutize(&cfg.Scanner.StorageDir); err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(configPath string) (*types.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	return Load(configPath)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal
	def := DefaultConfig()
	v.SetDefault("library.reconcile_on_activate", def.Library.ReconcileOnActivate)
	v.SetDefault("library.reconcile_timeout", def.Library.ReconcileTimeout)
	v.SetDefault("library.blob_dir", def.Library.BlobDir)
	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.db_path", def.Store.DBPath)
	v.SetDefault("store.s3_bucket", def.Store.S3Bucket)
	v.SetDefault("store.s3_prefix", def.Store.S3Prefix)
	v.SetDefault("store.s3_region", def.Store.S3Region)
	v.SetDefault("store.s3_endpoint", def.Store.S3URL)
	v.SetDefault("store.s3_access_key", def.Store.S3AccessKey)
	v.SetDefault("store.s3_secret_key", def.Store.S3SecretKey)
	v.SetDefault("remote.base_url", def.Remote.BaseURL)
	v.SetDefault("remote.request_timeout", def.Remote.RequestTimeout)
	v.SetDefault("api.host", def.API.Host)
	v.SetDefault("api.port", def.API.Port)
	v.SetDefault("api.allowed_origins", def.API.AllowedOrigins)
	v.SetDefault("scanner.host", def.Scanner.Host)
	v.SetDefault("scanner.port", def.Scanner.Port)
	v.SetDefault("scanner.storage_dir", def.Scanner.StorageDir)
	v.SetDefault("scanner.page_width", def.Scanner.PageWidth)
	v.SetDefault("scanner.page_height", def.Scanner.PageHeight)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output_path", def.Logging.OutputPath)
	return v
}

func absolutize(p *string) error {
	if *p == "" || filepath.IsAbs(*p) {
		return nil
	}
	abs, err := filepath.Abs(*p)
	if err != nil {
		return err
	}
	*p = abs
	return nil
}

// Validate checks that the configuration parameters are valid
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch cfg.Store.Driver {
	case types.DriverDuckDB, types.DriverBolt:
		if cfg.Store.DBPath == "" {
			return fmt.Errorf("store.db_path is required for driver %s", cfg.Store.Driver)
		}
	case types.DriverS3:
		if cfg.Store.S3Bucket == "" {
			return fmt.Errorf("store.s3_bucket is required for driver s3")
		}
		if (cfg.Store.S3AccessKey == "") != (cfg.Store.S3SecretKey == "") {
			return fmt.Errorf("store.s3_access_key and store.s3_secret_key must be set together")
		}
	case types.DriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}

	if _, err := ParseDuration(cfg.Library.ReconcileTimeout); err != nil {
		return fmt.Errorf("invalid library.reconcile_timeout: %w", err)
	}
	if _, err := ParseDuration(cfg.Remote.RequestTimeout); err != nil {
		return fmt.Errorf("invalid remote.request_timeout: %w", err)
	}

	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535, got %d", cfg.API.Port)
	}
	if cfg.Scanner.Port < 1 || cfg.Scanner.Port > 65535 {
		return fmt.Errorf("scanner port must be between 1 and 65535, got %d", cfg.Scanner.Port)
	}

	if cfg.Scanner.PageWidth < 1 || cfg.Scanner.PageHeight < 1 {
		return fmt.Errorf("scanner page size must be positive, got %dx%d", cfg.Scanner.PageWidth, cfg.Scanner.PageHeight)
	}

	return nil
}

// ParseDuration parses a config duration; empty means zero (no timeout)
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative, got %s", s)
	}
	return d, nil
}

// SaveToFile saves configuration to a JSON file
func SaveToFile(cfg *types.Config, configPath string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
