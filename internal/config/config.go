package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `json:"serverAddress" env:"SERVER_ADDRESS"`
	DatabasePath  string    `json:"databasePath" env:"DATABASE_PATH"`
	DatabaseURL   string    `json:"databaseUrl" env:"DATABASE_URL"`
	Storage       Storage   `json:"storage"`
	Manifest      Manifest  `json:"manifest"`
	Gallery       Gallery   `json:"gallery"`
	CDN           CDN       `json:"cdn"`
	CORS          CORS      `json:"cors"`
	Telemetry     Telemetry `json:"telemetry"`
}

// Storage configures the object store holding images and the manifest
type Storage struct {
	Backend         string `json:"backend" env:"STORAGE_BACKEND"`
	BasePath        string `json:"basePath" env:"STORAGE_PATH"`
	Bucket          string `json:"bucket" env:"S3_BUCKET"`
	Region          string `json:"region" env:"AWS_REGION"`
	Endpoint        string `json:"endpoint" env:"S3_ENDPOINT"`
	AccessKeyID     string `json:"accessKeyId" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secretAccessKey" env:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `json:"usePathStyle" env:"S3_USE_PATH_STYLE"`
	StorageClass    string `json:"storageClass" env:"STORAGE_CLASS"`
	PublicBaseURL   string `json:"publicBaseUrl" env:"PUBLIC_BASE_URL"`
	MaxUploadMB     int64  `json:"maxUploadMB" env:"MAX_UPLOAD_MB"`
}

// Manifest configures where the key listing is published and read from
type Manifest struct {
	Key          string   `json:"key" env:"MANIFEST_KEY"`
	SourceURL    string   `json:"sourceUrl" env:"MANIFEST_SOURCE_URL"`
	Exclude      []string `json:"exclude" env:"MANIFEST_EXCLUDE" envSeparator:","`
	FetchTimeout Duration `json:"fetchTimeout" env:"MANIFEST_FETCH_TIMEOUT"`
}

// Gallery configures viewer sessions
type Gallery struct {
	BatchSize       int      `json:"batchSize" env:"GALLERY_BATCH_SIZE"`
	DisplayTimezone string   `json:"displayTimezone" env:"DISPLAY_TIMEZONE"`
	SessionTTL      Duration `json:"sessionTTL" env:"SESSION_TTL"`
	MaxSessions     int      `json:"maxSessions" env:"MAX_SESSIONS"`
}

// CDN configures cache invalidation after publication
type CDN struct {
	DistributionID string `json:"distributionId" env:"CDN_DISTRIBUTION_ID"`
}

// CORS configures cross-origin access to the API
type CORS struct {
	AllowedOrigins []string `json:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// AllowCredentials reports whether cookies may ride on cross-origin requests;
// never when "*" is configured
func (c CORS) AllowCredentials() bool {
	if len(c.AllowedOrigins) == 0 {
		return false
	}
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return false
		}
	}
	return true
}

// Telemetry configures the OTLP exporters
type Telemetry struct {
	Enabled     bool    `json:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string  `json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Environment string  `json:"environment" env:"ENVIRONMENT"`
	SampleRatio float64 `json:"sampleRatio" env:"OTEL_SAMPLE_RATIO"`
}

// Duration reads "30s"-style values from both JSON and the environment
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Location returns the display time zone; Validate has already checked it
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Gallery.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PublicURL returns the URL under which key is served
func (c *Config) PublicURL(key string) string {
	return strings.TrimSuffix(c.Storage.PublicBaseURL, "/") + "/" + key
}

// ExcludeList returns the manifest exclusions, always including the manifest key itself
func (c *Config) ExcludeList() []string {
	out := append([]string(nil), c.Manifest.Exclude...)
	for _, e := range out {
		if e == c.Manifest.Key {
			return out
		}
	}
	return append(out, c.Manifest.Key)
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Storage.MaxUploadMB * 1024 * 1024
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "sketchstacker.db",
		Storage: Storage{
			Backend:       BackendLocal,
			BasePath:      "./images",
			Region:        "us-east-1",
			StorageClass:  "GLACIER_IR",
			PublicBaseURL: "/objects",
			MaxUploadMB:   20,
		},
		Manifest: Manifest{
			Key:          "viewer/images.json",
			Exclude:      []string{"viewer/", "viewer/index.html", "viewer/images.json"},
			FetchTimeout: Duration{15 * time.Second},
		},
		Gallery: Gallery{
			BatchSize:       20,
			DisplayTimezone: "UTC",
			SessionTTL:      Duration{30 * time.Minute},
			MaxSessions:     10000,
		},
		Telemetry: Telemetry{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// Load reads defaults, then the JSON file at CONFIG_PATH (default config.json), then the environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Backend == BackendLocal {
		if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
			return nil, err
		}

		absPath, err := filepath.Abs(cfg.Storage.BasePath)
		if err != nil {
			return nil, err
		}
		cfg.Storage.BasePath = absPath
	}

	return cfg, nil
}

// Validate rejects incomplete or contradictory settings
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BasePath) == "" {
			errs = append(errs, errors.New("storage.basePath is required for the local backend"))
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the s3 backend"))
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
			errs = append(errs, errors.New("storage.accessKeyId and storage.secretAccessKey must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", BackendLocal, BackendS3, c.Storage.Backend))
	}

	if c.Storage.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("storage.maxUploadMB must be positive"))
	}
	if strings.TrimSpace(c.Manifest.Key) == "" {
		errs = append(errs, errors.New("manifest.key is required"))
	}
	if c.Manifest.SourceURL != "" {
		if u, err := url.Parse(c.Manifest.SourceURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("manifest.sourceUrl %q is not an absolute URL", c.Manifest.SourceURL))
		}
	}
	if c.Manifest.FetchTimeout.Duration <= 0 {
		errs = append(errs, errors.New("manifest.fetchTimeout must be positive"))
	}
	if c.Gallery.BatchSize <= 0 {
		errs = append(errs, errors.New("gallery.batchSize must be positive"))
	}
	if c.Gallery.SessionTTL.Duration <= 0 {
		errs = append(errs, errors.New("gallery.sessionTTL must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sampleRatio must be between 0 and 1"))
	}
	if c.Gallery.MaxSessions < 0 {
		errs = append(errs, errors.New("gallery.maxSessions must not be negative"))
	}
	if _, err := time.LoadLocation(c.Gallery.DisplayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("gallery.displayTimezone: %w", err))
	}
	if c.CDN.DistributionID != "" && c.Storage.Backend != BackendS3 {
		errs = append(errs, errors.New("cdn.distributionId requires the s3 backend"))
	}

	return errors.Join(errs...)
}
