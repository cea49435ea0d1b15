package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("STORAGE_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.ServerAddress)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "viewer/images.json", cfg.Manifest.Key)
	assert.Equal(t, 20, cfg.Gallery.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.Gallery.SessionTTL.Duration)
	assert.Equal(t, 10000, cfg.Gallery.MaxSessions)
	assert.Equal(t, 15*time.Second, cfg.Manifest.FetchTimeout.Duration)
	assert.True(t, filepath.IsAbs(cfg.Storage.BasePath))
	assert.False(t, cfg.UsePostgres())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"serverAddress": ":8080",
		"storage": {"backend": "s3", "bucket": "from-file", "publicBaseUrl": "https://cdn.example.com/"},
		"manifest": {"fetchTimeout": "5s"},
		"gallery": {"batchSize": 10, "displayTimezone": "Asia/Tokyo", "sessionTTL": "1h"},
		"cdn": {"distributionId": "E123"}
	}`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("GALLERY_BATCH_SIZE", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("MAX_SESSIONS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, 25, cfg.Gallery.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Manifest.FetchTimeout.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Gallery.SessionTTL.Duration)
	assert.Equal(t, 500, cfg.Gallery.MaxSessions)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.Equal(t, "https://cdn.example.com/1700000000000.png", cfg.PublicURL("1700000000000.png"))
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, `{not json`))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, "storage.bucket"},
		{"half credentials", func(c *Config) {
			c.Storage.Backend = BackendS3
			c.Storage.Bucket = "b"
			c.Storage.AccessKeyID = "AKIA"
		}, "must be set together"},
		{"zero batch", func(c *Config) { c.Gallery.BatchSize = 0 }, "gallery.batchSize"},
		{"bad timezone", func(c *Config) { c.Gallery.DisplayTimezone = "Mars/Olympus" }, "gallery.displayTimezone"},
		{"relative source url", func(c *Config) { c.Manifest.SourceURL = "viewer/images.json" }, "manifest.sourceUrl"},
		{"cdn without s3", func(c *Config) { c.CDN.DistributionID = "E1" }, "cdn.distributionId"},
		{"no upload limit", func(c *Config) { c.Storage.MaxUploadMB = 0 }, "storage.maxUploadMB"},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "telemetry.sampleRatio"},
		{"negative session cap", func(c *Config) { c.Gallery.MaxSessions = -1 }, "gallery.maxSessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ExcludeList(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, cfg.Manifest.Exclude, cfg.ExcludeList())

	cfg.Manifest.Key = "public/manifest.json"
	list := cfg.ExcludeList()
	assert.Contains(t, list, "public/manifest.json")
	assert.Len(t, list, len(cfg.Manifest.Exclude)+1)
}

func TestConfig_MaxUploadBytes(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.MaxUploadMB = 2
	assert.Equal(t, int64(2*1024*1024), cfg.MaxUploadBytes())
}

func TestCORS_AllowCredentials(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		want    bool
	}{
		{"listed origins", []string{"https://a.example", "https://b.example"}, true},
		{"wildcard", []string{"*"}, false},
		{"wildcard among others", []string{"https://a.example", " * "}, false},
		{"none", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CORS{AllowedOrigins: tt.origins}
			assert.Equal(t, tt.want, c.AllowCredentials())
		})
	}
}
