package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap returns a getenv function backed by m.
func envMap(m map[string]string) func(string) string {
	return func(key string) string {
		return m[key]
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, "dev", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "telegram", cfg.StorageBackend)
	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
	assert.False(t, cfg.PreserveImages)
	assert.Equal(t, "https://telegra.ph", cfg.PasteBaseURL)
	assert.Equal(t, 60*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "none", cfg.MetadataProvider)
	assert.Equal(t, 10*time.Second, cfg.MetadataTimeout)
	assert.Equal(t, "metadata/", cfg.MetadataS3Prefix)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 256, cfg.WorkerQueueSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2.0, cfg.UploadRateLimit)
	assert.Equal(t, 10, cfg.UploadRateBurst)
	assert.Equal(t, "postgresql://postgres:@localhost:5432/postgres", cfg.DatabaseURL())
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(envMap(map[string]string{
		"SERVER_HOST":        "0.0.0.0",
		"SERVER_PORT":        "9000",
		"ENVIRONMENT":        "production",
		"TELEGRAM_BOT_TOKEN": "123:abc",
		"TELEGRAM_CHAT_ID":   "-100",
		"PRESERVE_IMAGES":    "true",
		"UPSTREAM_TIMEOUT":   "5s",
		"METADATA_PROVIDER":  "s3",
		"METADATA_S3_BUCKET": "uploads",
		"WORKER_COUNT":       "4",
		"UPLOAD_RATE_LIMIT":  "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, "-100", cfg.TelegramChatID)
	assert.True(t, cfg.PreserveImages)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "s3", cfg.MetadataProvider)
	assert.Equal(t, "uploads", cfg.MetadataS3Bucket)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 0.0, cfg.UploadRateLimit)
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	cfg, err := LoadConfig(envMap(map[string]string{
		"SERVER_PORT":      "eighty",
		"PRESERVE_IMAGES":  "maybe",
		"METADATA_TIMEOUT": "soon",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.PreserveImages)
	assert.Equal(t, 10*time.Second, cfg.MetadataTimeout)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown backend",
			env:     map[string]string{"STORAGE_BACKEND": "ftp"},
			wantErr: "STORAGE_BACKEND",
		},
		{
			name:    "production without token",
			env:     map[string]string{"ENVIRONMENT": "prod", "TELEGRAM_CHAT_ID": "1"},
			wantErr: "TELEGRAM_BOT_TOKEN",
		},
		{
			name:    "production without chat id",
			env:     map[string]string{"ENVIRONMENT": "prod", "TELEGRAM_BOT_TOKEN": "t"},
			wantErr: "TELEGRAM_CHAT_ID",
		},
		{
			name:    "unknown metadata provider",
			env:     map[string]string{"METADATA_PROVIDER": "redis"},
			wantErr: "METADATA_PROVIDER",
		},
		{
			name:    "s3 without bucket",
			env:     map[string]string{"METADATA_PROVIDER": "s3"},
			wantErr: "METADATA_S3_BUCKET",
		},
		{
			name:    "negative rate limit",
			env:     map[string]string{"UPLOAD_RATE_LIMIT": "-1"},
			wantErr: "UPLOAD_RATE_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_DevWithoutCredentials(t *testing.T) {
	// Outside production the server starts and reports the missing token
	// per request.
	cfg, err := LoadConfig(envMap(map[string]string{"ENVIRONMENT": "dev"}))
	require.NoError(t, err)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoadConfig_PasteBackend(t *testing.T) {
	cfg, err := LoadConfig(envMap(map[string]string{
		"ENVIRONMENT":     "production",
		"STORAGE_BACKEND": "paste",
		"PASTE_BASE_URL":  "https://paste.example",
	}))
	require.NoError(t, err)
	assert.Equal(t, "paste", cfg.StorageBackend)
	assert.Equal(t, "https://paste.example", cfg.PasteBaseURL)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		level    string
		contains string
	}{
		{name: "production logs json", env: "production", level: "info", contains: `"msg":"hello"`},
		{name: "dev logs text", env: "dev", level: "info", contains: "msg=hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, &Config{Environment: tt.env, LogLevel: tt.level})
			logger.Info("hello")
			assert.Contains(t, buf.String(), tt.contains)
		})
	}

	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{Environment: "dev", LogLevel: "warn"})
	logger.Info("dropped")
	assert.Empty(t, buf.String())
}
