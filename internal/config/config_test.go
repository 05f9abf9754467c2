package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.normalize())
	require.Equal(t, "local", cfg.Storage.Type)
	require.Equal(t, BookFormatText, cfg.BookFormat)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "openrouter", cfg.AI.Provider)
}

func TestApplyEnvOverridesFile(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, envMap(map[string]string{
		"DATABASE_URL":         "postgres://u:p@localhost/x",
		"STORAGE_AUDIO_PATH":   "/tmp/audio",
		"SMTP_PORT":            "2525",
		"OPENROUTER_API_KEY":   " key ",
		"HEALTHCHECK_DEEP":     "yes",
		"BACKEND_CORS_ORIGINS": "https://a.example, *, https://b.example",
	}))
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@localhost/x", cfg.Database.DSN)
	require.Equal(t, "/tmp/audio", cfg.Storage.AudioDir)
	require.Equal(t, 2525, cfg.Mail.Port)
	require.Equal(t, "key", cfg.AI.APIKey)
	require.True(t, cfg.HealthDeep)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	err := applyEnv(Default(), envMap(map[string]string{"PORT": "eighty"}))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 9000,
		"database": {"dsn": "postgres://file"},
		"storage": {"type": "local", "audio_dir": "/a", "book_dir": "/b"},
		"book_format": "HTML"
	}`), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BookFormatHTML, cfg.BookFormat)
	require.Equal(t, "/a", cfg.Storage.AudioDir)
}

func TestNormalizeValidatesStorage(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = "s3"
	require.Error(t, cfg.normalize())

	cfg.Storage.S3 = S3Config{Endpoint: "http://minio:9000", Bucket: "bw", SecretID: "id", SecretKey: "secret"}
	require.NoError(t, cfg.normalize())
	require.Equal(t, "audio", cfg.Storage.S3.AudioPrefix)
	require.Equal(t, "books", cfg.Storage.S3.BookPrefix)

	cfg.Storage.Type = "ftp"
	require.Error(t, cfg.normalize())
}

func TestNormalizeRejectsUnknownBookFormat(t *testing.T) {
	cfg := Default()
	cfg.BookFormat = "pdf"
	require.Error(t, cfg.normalize())
}

func TestResolveTranscribe(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "gen-key"
	tc, dedicated := cfg.ResolveTranscribe()
	require.False(t, dedicated)
	require.Equal(t, "gen-key", tc.APIKey)
	require.Equal(t, cfg.AI.BaseURL, tc.BaseURL)

	cfg.Transcribe.APIKey = "stt-key"
	cfg.Transcribe.BaseURL = "https://api.openai.com/v1"
	tc, dedicated = cfg.ResolveTranscribe()
	require.True(t, dedicated)
	require.Equal(t, "stt-key", tc.APIKey)
	require.Equal(t, "https://api.openai.com/v1", tc.BaseURL)
}

func TestNormalizePicksProviderModel(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(cfg, envMap(map[string]string{"AI_PROVIDER": "Gemini"})))
	require.NoError(t, cfg.normalize())
	require.Equal(t, "gemini", cfg.AI.Provider)
	require.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	require.Empty(t, cfg.AI.BaseURL)

	cfg = Default()
	cfg.AI.Provider = "openai"
	require.NoError(t, cfg.normalize())
	require.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	require.Equal(t, "https://api.openai.com/v1", cfg.AI.BaseURL)

	cfg = Default()
	require.NoError(t, cfg.normalize())
	require.Equal(t, "anthropic/claude-3-opus-20240229", cfg.AI.Model)
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.AI.BaseURL)

	cfg = Default()
	require.NoError(t, applyEnv(cfg, envMap(map[string]string{"AI_PROVIDER": "gemini", "OPENROUTER_MODEL": "gemini-2.0-pro"})))
	require.NoError(t, cfg.normalize())
	require.Equal(t, "gemini-2.0-pro", cfg.AI.Model)
}
