package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiProvider struct {
	apiKey string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Configured() bool {
	return p.apiKey != ""
}

func (p *geminiProvider) client(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *geminiProvider) Generate(ctx context.Context, in GenerateRequest) (*GenerateResult, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{}
	if in.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: in.System}}}
	}
	if in.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(in.Temperature))
	}
	if in.MaxTokens > 0 {
		config.MaxOutputTokens = int32(in.MaxTokens)
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		in.Model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: in.Prompt}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("gemini returned no response")
	}
	return &GenerateResult{
		Text:  strings.TrimSpace(resp.Text()),
		Model: strings.TrimSpace(resp.ModelVersion),
	}, nil
}

func (p *geminiProvider) Ping(ctx context.Context, model string) error {
	client, err := p.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Models.Get(ctx, model, nil)
	return err
}

func createGeminiFactory(args interface{}) (IProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
}
