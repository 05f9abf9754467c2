package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/pkg/extcall"
)

type RewriterConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Attempts    int
}

// Rewrite is the outcome of one rewrite call. When OK is false Text holds the
// untouched transcript and Model is empty.
type Rewrite struct {
	Text  string
	Model string
	OK    bool
}

type Rewriter struct {
	provider IProvider
	cfg      RewriterConfig
}

func NewRewriter(provider IProvider, cfg RewriterConfig) *Rewriter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	return &Rewriter{provider: provider, cfg: cfg}
}

func (r *Rewriter) Provider() IProvider {
	return r.provider
}

func (r *Rewriter) DefaultModel() string {
	return r.cfg.Model
}

// Rewrite turns a transcript into a montage passage. model overrides the
// configured default when set. It never fails, see Rewrite.
func (r *Rewriter) Rewrite(ctx context.Context, anchor string, transcript string, model string) Rewrite {
	fallback := Rewrite{Text: transcript}
	if r.provider == nil || !r.provider.Configured() {
		logutil.GetLogger(ctx).Warn("rewrite skipped, provider not configured")
		return fallback
	}
	if strings.TrimSpace(transcript) == "" {
		logutil.GetLogger(ctx).Warn("rewrite skipped, empty transcript")
		return fallback
	}
	chosen := strings.TrimSpace(model)
	if chosen == "" {
		chosen = r.cfg.Model
	}
	req := GenerateRequest{
		Model:       chosen,
		System:      montageSystemPrompt,
		Prompt:      buildRewritePrompt(anchor, transcript),
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
	policy := extcall.Policy{Name: "rewrite", Attempts: r.cfg.Attempts, Timeout: r.cfg.Timeout}
	res := extcall.Do(ctx, policy, fallback, func(ctx context.Context) (Rewrite, error) {
		out, err := r.provider.Generate(ctx, req)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return Rewrite{}, extcall.Permanent(err)
			}
			return Rewrite{}, err
		}
		if out.Text == "" {
			return Rewrite{}, fmt.Errorf("empty completion")
		}
		return Rewrite{Text: out.Text, Model: resultModel(out.Model, chosen), OK: true}, nil
	})
	if !res.OK() {
		logutil.GetLogger(ctx).Error("rewrite failed, keep transcript",
			zap.String("model", chosen), zap.Int("attempts", res.Attempts), zap.Error(res.Err))
		return fallback
	}
	logutil.GetLogger(ctx).Info("rewrite finished",
		zap.String("model", res.Value.Model), zap.Int("chars", len(res.Value.Text)))
	return res.Value
}

func resultModel(reported string, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}
