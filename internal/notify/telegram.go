package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xxxsen/bioweaver/internal/config"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegram(cfg config.TelegramConfig) *Telegram {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	return &Telegram{
		token:   strings.TrimSpace(cfg.BotToken),
		chatID:  strings.TrimSpace(cfg.ChatID),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (t *Telegram) Configured() bool {
	return t.token != "" && t.chatID != ""
}

type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return ErrNotConfigured
	}
	data, err := json.Marshal(map[string]string{"chat_id": t.chatID, "text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method("sendMessage"), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

// Ping calls getMe, which has no side effects.
func (t *Telegram) Ping(ctx context.Context) error {
	if t.token == "" {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.method("getMe"), nil)
	if err != nil {
		return err
	}
	return t.do(req)
}

func (t *Telegram) method(name string) string {
	return t.baseURL + "/bot" + t.token + "/" + name
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		// the request url carries the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram %s failed: %w", strings.ToLower(uerr.Op), uerr.Err)
		}
		return fmt.Errorf("telegram request failed: %s", t.redact(err.Error()))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("telegram request failed: %s", resp.Status)
	}
	var reply telegramReply
	if err := json.Unmarshal(body, &reply); err == nil && !reply.OK {
		return fmt.Errorf("telegram request rejected: %s", reply.Description)
	}
	return nil
}

func (t *Telegram) redact(msg string) string {
	if t.token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, t.token, "<redacted>")
}
