package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/pkg/extcall"
)

const defaultAudioMIME = "audio/wav"

var audioMIME = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".webm": "audio/webm",
	".flac": "audio/flac",
}

// AudioOpener opens the stored audio, it is called once per attempt.
type AudioOpener func(ctx context.Context) (io.ReadCloser, error)

type TranscriberConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPReferer string
	XTitle      string
	Timeout     time.Duration
	Attempts    int
}

type Transcriber struct {
	cfg    TranscriberConfig
	client *http.Client
}

func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Model == "" {
		cfg.Model = "openai/whisper-1"
	}
	if cfg.XTitle == "" {
		cfg.XTitle = defaultXTitle
	}
	return &Transcriber{cfg: cfg, client: http.DefaultClient}
}

func (t *Transcriber) Configured() bool {
	return t.cfg.APIKey != "" && t.cfg.BaseURL != ""
}

func (t *Transcriber) Model() string {
	return t.cfg.Model
}

func (t *Transcriber) BaseURL() string {
	return t.cfg.BaseURL
}

// Transcribe returns the plain text transcript of the named audio, or "" when
// transcription is unavailable for any reason.
func (t *Transcriber) Transcribe(ctx context.Context, name string, open AudioOpener) string {
	logger := logutil.GetLogger(ctx).With(zap.String("file", name))
	if !t.Configured() {
		logger.Warn("transcription skipped, provider not configured")
		return ""
	}
	policy := extcall.Policy{Name: "transcribe", Attempts: t.cfg.Attempts, Timeout: t.cfg.Timeout}
	res := extcall.Do(ctx, policy, "", func(ctx context.Context) (string, error) {
		return t.call(ctx, name, open)
	})
	if !res.OK() {
		logger.Error("transcription failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
		return ""
	}
	logger.Info("transcription finished", zap.Int("chars", len(res.Value)))
	return res.Value
}

func (t *Transcriber) call(ctx context.Context, name string, open AudioOpener) (string, error) {
	rc, err := open(ctx)
	if err != nil {
		return "", extcall.Permanent(fmt.Errorf("open audio: %w", err))
	}
	defer rc.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("model", t.cfg.Model)
	_ = writer.WriteField("response_format", "text")
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(name)))
	header.Set("Content-Type", AudioContentType(name))
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return "", extcall.Permanent(fmt.Errorf("read audio: %w", err))
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", extcall.Permanent(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	if t.cfg.HTTPReferer != "" {
		req.Header.Set("HTTP-Referer", t.cfg.HTTPReferer)
	}
	req.Header.Set("X-Title", t.cfg.XTitle)
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("transcription request failed: %s: %s", resp.Status, truncate(strings.TrimSpace(string(data)), 200))
	}
	return strings.TrimSpace(string(data)), nil
}

// AudioContentType guesses the MIME type of an audio file from its extension.
func AudioContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if v, ok := audioMIME[ext]; ok {
		return v
	}
	if v := mime.TypeByExtension(ext); strings.HasPrefix(v, "audio/") {
		return v
	}
	return defaultAudioMIME
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
