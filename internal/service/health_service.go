package service

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/bioweaver/internal/ai"
	"github.com/xxxsen/bioweaver/internal/config"
	"github.com/xxxsen/bioweaver/internal/filestore"
)

const (
	healthProbeKey     = ".healthcheck"
	deepProbeTTL       = 30 * time.Second
	telegramProbeLimit = 8 * time.Second
	genProbeLimit      = 10 * time.Second
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type TelegramProbe interface {
	Configured() bool
	Ping(ctx context.Context) error
}

type HealthConfig struct {
	Mail            config.MailConfig
	AudioLocation   string
	BookLocation    string
	GenerationBase  string
	GenerationModel string
	Transcription   TranscriptionHealth
	Deep            bool
}

type DBHealth struct {
	OK        bool    `json:"ok"`
	LatencyMS int64   `json:"latency_ms"`
	Error     *string `json:"error"`
}

type StorageHealth struct {
	OK    bool    `json:"ok"`
	Audio string  `json:"audio"`
	Books string  `json:"books"`
	Error *string `json:"error"`
}

type SMTPHealth struct {
	Configured bool   `json:"configured"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
}

type TelegramHealth struct {
	Configured bool   `json:"configured"`
	OK         *bool  `json:"ok,omitempty"`
	Error      string `json:"error,omitempty"`
}

type GenerationHealth struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	OK         *bool  `json:"ok,omitempty"`
	Error      string `json:"error,omitempty"`
}

type TranscriptionHealth struct {
	Configured bool   `json:"configured"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	Dedicated  bool   `json:"dedicated"`
}

type HealthReport struct {
	OK            bool                `json:"ok"`
	DB            DBHealth            `json:"db"`
	Storage       StorageHealth       `json:"storage"`
	SMTP          SMTPHealth          `json:"smtp"`
	Telegram      TelegramHealth      `json:"telegram"`
	Generation    GenerationHealth    `json:"generation"`
	Transcription TranscriptionHealth `json:"transcription"`
}

type probeResult struct {
	ok  bool
	err string
}

type HealthService struct {
	db       Pinger
	audio    filestore.Store
	books    filestore.Store
	telegram TelegramProbe
	provider ai.IProvider
	cfg      HealthConfig
	probes   *expirable.LRU[string, probeResult]
}

func NewHealthService(db Pinger, audio, books filestore.Store, telegram TelegramProbe, provider ai.IProvider, cfg HealthConfig) *HealthService {
	return &HealthService{
		db:       db,
		audio:    audio,
		books:    books,
		telegram: telegram,
		provider: provider,
		cfg:      cfg,
		probes:   expirable.NewLRU[string, probeResult](8, nil, deepProbeTTL),
	}
}

// Collect reports the state of every dependency. deep adds live probes of the
// messaging and generation providers; those never send or generate anything.
func (s *HealthService) Collect(ctx context.Context, deep bool) *HealthReport {
	report := &HealthReport{OK: true}

	start := time.Now()
	err := s.db.PingContext(ctx)
	report.DB = DBHealth{OK: err == nil, LatencyMS: time.Since(start).Milliseconds(), Error: errString(err)}
	if err != nil {
		report.OK = false
	}

	report.Storage = StorageHealth{OK: true, Audio: s.cfg.AudioLocation, Books: s.cfg.BookLocation}
	if err := s.probeStorage(ctx); err != nil {
		report.OK = false
		report.Storage.OK = false
		report.Storage.Error = errString(err)
	}

	report.SMTP = SMTPHealth{Configured: s.cfg.Mail.Configured(), Host: s.cfg.Mail.Host, Port: s.cfg.Mail.Port}

	tgConfigured := s.telegram != nil && s.telegram.Configured()
	report.Telegram = TelegramHealth{Configured: tgConfigured}

	report.Generation = GenerationHealth{
		BaseURL: strings.TrimRight(s.cfg.GenerationBase, "/"),
		Model:   s.cfg.GenerationModel,
	}
	if s.provider != nil {
		report.Generation.Configured = s.provider.Configured()
		report.Generation.Provider = s.provider.Name()
	}
	report.Transcription = s.cfg.Transcription

	if !deep && !s.cfg.Deep {
		return report
	}
	tg := probeResult{err: "not configured"}
	if tgConfigured {
		tg = s.cachedProbe(ctx, "telegram", telegramProbeLimit, s.telegram.Ping)
		if !tg.ok {
			report.OK = false
		}
	}
	report.Telegram.OK = &tg.ok
	report.Telegram.Error = tg.err

	gen := probeResult{err: "not configured"}
	if report.Generation.Configured {
		gen = s.cachedProbe(ctx, "generation", genProbeLimit, func(ctx context.Context) error {
			return s.provider.Ping(ctx, s.cfg.GenerationModel)
		})
		if !gen.ok {
			report.OK = false
		}
	}
	report.Generation.OK = &gen.ok
	report.Generation.Error = gen.err
	return report
}

func (s *HealthService) probeStorage(ctx context.Context) error {
	if err := s.books.Save(ctx, healthProbeKey, strings.NewReader("ok"), 2); err != nil {
		return err
	}
	return s.books.Delete(ctx, healthProbeKey)
}

func (s *HealthService) cachedProbe(ctx context.Context, name string, limit time.Duration, fn func(ctx context.Context) error) probeResult {
	if res, ok := s.probes.Get(name); ok {
		return res
	}
	pctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	res := probeResult{ok: true}
	if err := fn(pctx); err != nil {
		res = probeResult{err: err.Error()}
	}
	s.probes.Add(name, res)
	return res
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
