package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultXTitle            = "BioWeaver"
)

// chatConfig is shared by every provider speaking the chat/completions protocol.
type chatConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

type chatProvider struct {
	name        string
	apiKey      string
	baseURL     string
	httpReferer string
	xTitle      string
	client      *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *chatProvider) Name() string {
	return p.name
}

func (p *chatProvider) Configured() bool {
	return p.apiKey != ""
}

func (p *chatProvider) Generate(ctx context.Context, in GenerateRequest) (*GenerateResult, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	msgs := make([]chatMsg, 0, 2)
	if in.System != "" {
		msgs = append(msgs, chatMsg{Role: "system", Content: in.System})
	}
	msgs = append(msgs, chatMsg{Role: "user", Content: in.Prompt})
	data, err := json.Marshal(chatRequest{
		Model:       in.Model,
		Messages:    msgs,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/chat/completions"), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(body)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s response has no choices", p.name)
	}
	return &GenerateResult{
		Text:  strings.TrimSpace(out.Choices[0].Message.Content),
		Model: strings.TrimSpace(out.Model),
	}, nil
}

func (p *chatProvider) Ping(ctx context.Context, _ string) error {
	if p.apiKey == "" {
		return ErrUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/models"), nil)
	if err != nil {
		return err
	}
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s models request failed: %s", p.name, resp.Status)
	}
	return nil
}

func (p *chatProvider) endpoint(path string) string {
	return strings.TrimRight(p.baseURL, "/") + path
}

func (p *chatProvider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.httpReferer != "" {
		req.Header.Set("HTTP-Referer", p.httpReferer)
	}
	if p.xTitle != "" {
		req.Header.Set("X-Title", p.xTitle)
	}
}

func newChatFactory(name, defaultBaseURL string) ProviderFactory {
	return func(args interface{}) (IProvider, error) {
		cfg := &chatConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		xTitle := strings.TrimSpace(cfg.XTitle)
		if xTitle == "" {
			xTitle = defaultXTitle
		}
		return &chatProvider{
			name:        name,
			apiKey:      strings.TrimSpace(cfg.APIKey),
			baseURL:     baseURL,
			httpReferer: strings.TrimSpace(cfg.HTTPReferer),
			xTitle:      xTitle,
			client:      http.DefaultClient,
		}, nil
	}
}

func init() {
	Register("openrouter", newChatFactory("openrouter", defaultOpenRouterBaseURL))
	Register("openai", newChatFactory("openai", defaultOpenAIBaseURL))
}
