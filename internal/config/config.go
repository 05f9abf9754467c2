package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logger"
)

const (
	BookFormatText = "text"
	BookFormatHTML = "html"
)

type Config struct {
	Port          int              `json:"port"`
	Database      DatabaseConfig   `json:"database"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Storage       StorageConfig    `json:"storage"`
	Mail          MailConfig       `json:"mail"`
	Telegram      TelegramConfig   `json:"telegram"`
	AI            AIConfig         `json:"ai"`
	Transcribe    TranscribeConfig `json:"transcribe"`
	PublicBaseURL string           `json:"public_base_url"`
	AdminToken    string           `json:"admin_token"`
	HealthDeep    bool             `json:"health_deep"`
	CORSOrigins   []string         `json:"cors_origins"`
	BookFormat    string           `json:"book_format"`
	// MaxUploadBytes caps the audio upload body, 0 means unlimited.
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	// UploadRateLimitSeconds is the minimum gap between two uploads from the same client.
	UploadRateLimitSeconds int        `json:"upload_rate_limit_seconds"`
	Jobs                   JobsConfig `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type StorageConfig struct {
	Type      string   `json:"type"`
	AudioDir  string   `json:"audio_dir"`
	BookDir   string   `json:"book_dir"`
	PublicURL string   `json:"public_url"`
	S3        S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint    string `json:"endpoint"`
	SecretID    string `json:"secret_id"`
	SecretKey   string `json:"secret_key"`
	Bucket      string `json:"bucket"`
	Region      string `json:"region"`
	AudioPrefix string `json:"audio_prefix"`
	BookPrefix  string `json:"book_prefix"`
	UseSSL      bool   `json:"use_ssl"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	NotifyTo string `json:"notify_to"`
}

func (m MailConfig) Configured() bool {
	return m.Host != "" && m.Username != "" && m.Password != ""
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	BaseURL  string `json:"base_url"`
}

func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type AIConfig struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Timeout     int     `json:"timeout"`
}

type TranscribeConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

type JobsConfig struct {
	PendingPolishSpec  string `json:"pending_polish_spec"`
	PendingPolishBatch int    `json:"pending_polish_batch"`
}

type providerDefault struct {
	baseURL string
	model   string
}

// model ids are provider specific, a model left unset follows the provider.
var providerDefaults = map[string]providerDefault{
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", model: "anthropic/claude-3-opus-20240229"},
	"openai":     {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	"gemini":     {model: "gemini-2.5-flash"},
}

func Default() *Config {
	return &Config{
		Port: 8000,
		Database: DatabaseConfig{
			DSN: "postgres://bioweaver_user:change_me_pg@db:5432/bioweaver?sslmode=disable",
		},
		Storage: StorageConfig{
			Type:     "local",
			AudioDir: "/data/storage/audio",
			BookDir:  "/data/storage/books",
		},
		Mail: MailConfig{Port: 587},
		AI: AIConfig{
			Provider:    "openrouter",
			Temperature: 0.8,
			MaxTokens:   2000,
			Timeout:     60,
		},
		Transcribe: TranscribeConfig{
			Model:   "openai/whisper-1",
			Timeout: 120,
		},
		PublicBaseURL: "http://localhost",
		BookFormat:    BookFormatText,
		Jobs: JobsConfig{
			PendingPolishBatch: 10,
		},
	}
}

// Load builds the config from defaults, the optional json file at path and the
// process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.LogConfig.File == "" {
		c.LogConfig.Console = true
	}
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	switch c.Storage.Type {
	case "local":
		if c.Storage.AudioDir == "" || c.Storage.BookDir == "" {
			return fmt.Errorf("storage.audio_dir and storage.book_dir are required for local storage")
		}
	case "s3":
		s3 := c.Storage.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.SecretID == "" || s3.SecretKey == "" {
			return fmt.Errorf("storage.s3 endpoint/bucket/secret_id/secret_key are required for s3 storage")
		}
		if s3.Region == "" {
			c.Storage.S3.Region = "us-east-1"
		}
		if s3.AudioPrefix == "" {
			c.Storage.S3.AudioPrefix = "audio"
		}
		if s3.BookPrefix == "" {
			c.Storage.S3.BookPrefix = "books"
		}
	default:
		return fmt.Errorf("storage.type must be local or s3")
	}
	c.BookFormat = strings.ToLower(strings.TrimSpace(c.BookFormat))
	switch c.BookFormat {
	case "":
		c.BookFormat = BookFormatText
	case BookFormatText, BookFormatHTML:
	default:
		return fmt.Errorf("book_format must be text or html")
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.Username
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.Provider == "" {
		c.AI.Provider = "openrouter"
	}
	if d, ok := providerDefaults[c.AI.Provider]; ok {
		if c.AI.BaseURL == "" {
			c.AI.BaseURL = d.baseURL
		}
		if c.AI.Model == "" {
			c.AI.Model = d.model
		}
	}
	if c.Transcribe.Timeout <= 0 {
		c.Transcribe.Timeout = 120
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60
	}
	if c.Jobs.PendingPolishBatch <= 0 {
		c.Jobs.PendingPolishBatch = 10
	}
	return nil
}

// ResolveTranscribe returns the transcription endpoint settings. Without a dedicated
// key the generation provider's credentials are used; that provider is not expected
// to serve audio, so calls made with the fallback usually fail.
func (c *Config) ResolveTranscribe() (TranscribeConfig, bool) {
	out := c.Transcribe
	if strings.TrimSpace(out.APIKey) != "" {
		if out.BaseURL == "" {
			out.BaseURL = c.AI.BaseURL
		}
		return out, true
	}
	out.APIKey = c.AI.APIKey
	out.BaseURL = c.AI.BaseURL
	return out, false
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var firstErr error
	num := func(dst *int, key string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("env %s: %w", key, err)
			}
			return
		}
		*dst = n
	}
	flag := func(dst *bool, key string) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			*dst = true
		case "":
		default:
			*dst = false
		}
	}

	num(&cfg.Port, "PORT")
	str(&cfg.Database.DSN, "DATABASE_URL")
	str(&cfg.LogConfig.Level, "LOG_LEVEL")

	str(&cfg.Storage.Type, "STORAGE_TYPE")
	str(&cfg.Storage.AudioDir, "STORAGE_AUDIO_PATH")
	str(&cfg.Storage.BookDir, "STORAGE_BOOK_PATH")
	str(&cfg.Storage.PublicURL, "STORAGE_PUBLIC_BASE_URL")
	str(&cfg.Storage.S3.Endpoint, "S3_ENDPOINT")
	str(&cfg.Storage.S3.SecretID, "S3_ACCESS_KEY")
	str(&cfg.Storage.S3.SecretKey, "S3_SECRET_KEY")
	str(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	str(&cfg.Storage.S3.Region, "S3_REGION")
	flag(&cfg.Storage.S3.UseSSL, "S3_USE_SSL")

	str(&cfg.Mail.Host, "SMTP_HOST")
	num(&cfg.Mail.Port, "SMTP_PORT")
	str(&cfg.Mail.Username, "SMTP_USER")
	str(&cfg.Mail.Password, "SMTP_PASS")
	str(&cfg.Mail.From, "SMTP_FROM")
	str(&cfg.Mail.NotifyTo, "NOTIFY_EMAIL_TO")

	str(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	str(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")

	str(&cfg.AI.Provider, "AI_PROVIDER")
	str(&cfg.AI.APIKey, "OPENROUTER_API_KEY")
	str(&cfg.AI.BaseURL, "OPENROUTER_BASE_URL")
	str(&cfg.AI.Model, "OPENROUTER_MODEL")

	str(&cfg.Transcribe.APIKey, "TRANSCRIBE_API_KEY")
	str(&cfg.Transcribe.BaseURL, "TRANSCRIBE_BASE_URL")
	str(&cfg.Transcribe.Model, "WHISPER_MODEL")

	str(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	str(&cfg.AdminToken, "ADMIN_TOKEN")
	flag(&cfg.HealthDeep, "HEALTHCHECK_DEEP")
	str(&cfg.BookFormat, "BOOK_FORMAT")
	if v, ok := lookup("BACKEND_CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	return firstErr
}

func splitList(v string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" || item == "*" {
			continue
		}
		out = append(out, item)
	}
	return out
}
