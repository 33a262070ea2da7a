package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/passport-photo/pkg/preset"
	"github.com/menta2k/passport-photo/pkg/sheet"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Vision   VisionConfig   `json:"vision"`
	Matting  MattingConfig  `json:"matting"`
	Pricing  PricingConfig  `json:"pricing"`
	Defaults DefaultsConfig `json:"defaults"`
	Upload   UploadConfig   `json:"upload"`
}

// ServerConfig holds configuration for the HTTP API
type ServerConfig struct {
	Addr            string   `json:"addr"`
	PublicURL       string   `json:"public_url"`
	MaxUploadBytes  int64    `json:"max_upload_bytes"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// StorageConfig holds configuration for job folders
type StorageConfig struct {
	JobsDir         string   `json:"jobs_dir"`
	CleanupDelay    Duration `json:"cleanup_delay"`
	OriginalQuality int      `json:"original_quality"`
}

// DatabaseConfig holds the Postgres job store settings. An empty DSN keeps jobs in memory.
type DatabaseConfig struct {
	DSN          string `json:"dsn"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// RedisConfig holds the job cache settings. An empty address disables the cache.
type RedisConfig struct {
	Addr string   `json:"addr"`
	TTL  Duration `json:"ttl"`
}

// VisionConfig holds configuration for face detection
type VisionConfig struct {
	Backend           string `json:"backend"` // ollama, llamacpp or none
	URL               string `json:"url"`
	Model             string `json:"model"`
	MaxDim            int    `json:"max_dim"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// MattingConfig holds configuration for background removal. An empty URL keeps the
// uploaded background.
type MattingConfig struct {
	URL   string `json:"url"`
	Model string `json:"model"`
}

// PricingConfig holds the walk-in pricing rules
type PricingConfig struct {
	PricePerCopy int    `json:"price_per_copy"`
	CustomerName string `json:"customer_name"`
}

// DefaultsConfig holds the values used when a request leaves a field out
type DefaultsConfig struct {
	BGColor string `json:"bg_color"`
	Preset  string `json:"preset"`
	Copies  int    `json:"copies"`
}

// UploadConfig holds configuration for decoding uploads
type UploadConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
}

// Duration is a time.Duration that reads and writes as a string like "10s"
type Duration time.Duration

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":7000",
			PublicURL:       "http://localhost:7000",
			MaxUploadBytes:  20 << 20,
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Storage: StorageConfig{
			JobsDir:         "uploads/jobs",
			CleanupDelay:    Duration(10 * time.Second),
			OriginalQuality: 90,
		},
		Database: DatabaseConfig{
			MaxIdleConns: 5,
			MaxOpenConns: 10,
		},
		Redis: RedisConfig{
			TTL: Duration(10 * time.Minute),
		},
		Vision: VisionConfig{
			Backend: "none",
			URL:     "http://localhost:11434",
			Model:   "openbmb/minicpm-v4.5",
			MaxDim:  1024,
		},
		Pricing: PricingConfig{
			PricePerCopy: 10,
			CustomerName: "Walk-in",
		},
		Defaults: DefaultsConfig{
			BGColor: "#ffffff",
			Preset:  "passport",
			Copies:  6,
		},
		Upload: UploadConfig{
			SupportedFormats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
			MinImageSize:     100,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the file keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables. Unset variables leave the
// current value alone.
func (c *Config) ApplyEnv() error {
	setString(&c.Server.Addr, "PASSPORT_ADDR")
	setString(&c.Server.PublicURL, "PASSPORT_PUBLIC_URL")
	setString(&c.Storage.JobsDir, "PASSPORT_JOBS_DIR")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Vision.Backend, "VISION_BACKEND")
	setString(&c.Vision.URL, "VISION_URL")
	setString(&c.Vision.Model, "VISION_MODEL")
	setString(&c.Matting.URL, "REMBG_URL")
	setString(&c.Matting.Model, "REMBG_MODEL")

	if err := setInt(&c.Vision.RequestsPerMinute, "VISION_RPM"); err != nil {
		return err
	}
	if err := setInt(&c.Pricing.PricePerCopy, "PASSPORT_PRICE_PER_COPY"); err != nil {
		return err
	}
	if v := os.Getenv("PASSPORT_CLEANUP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PASSPORT_CLEANUP_DELAY: %w", err)
		}
		c.Storage.CleanupDelay = Duration(d)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if c.Storage.JobsDir == "" {
		return fmt.Errorf("storage.jobs_dir cannot be empty")
	}

	if c.Storage.CleanupDelay < 0 {
		return fmt.Errorf("storage.cleanup_delay cannot be negative")
	}

	if c.Storage.OriginalQuality < 1 || c.Storage.OriginalQuality > 100 {
		return fmt.Errorf("storage.original_quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Vision.Backend) {
	case "none":
	case "ollama", "llamacpp":
		if c.Vision.URL == "" {
			return fmt.Errorf("vision.url is required for backend %s", c.Vision.Backend)
		}
	default:
		return fmt.Errorf("vision.backend must be one of ollama, llamacpp, none")
	}

	if c.Vision.RequestsPerMinute < 0 {
		return fmt.Errorf("vision.requests_per_minute cannot be negative")
	}

	if c.Pricing.PricePerCopy < 0 {
		return fmt.Errorf("pricing.price_per_copy cannot be negative")
	}

	if _, err := preset.Lookup(c.Defaults.Preset); err != nil {
		return fmt.Errorf("defaults.preset: %w", err)
	}

	if _, err := sheet.ParseHexColor(c.Defaults.BGColor); err != nil {
		return fmt.Errorf("defaults.bg_color: %w", err)
	}

	if c.Defaults.Copies < 1 {
		return fmt.Errorf("defaults.copies must be positive")
	}

	if c.Upload.MinImageSize < 1 {
		return fmt.Errorf("upload.min_image_size must be positive")
	}

	if len(c.Upload.SupportedFormats) == 0 {
		return fmt.Errorf("upload.supported_formats cannot be empty")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "passport-photo", "config.json")
}
