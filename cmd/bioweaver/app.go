package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/ai"
	"github.com/xxxsen/bioweaver/internal/config"
	"github.com/xxxsen/bioweaver/internal/db"
	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/handler"
	"github.com/xxxsen/bioweaver/internal/job"
	"github.com/xxxsen/bioweaver/internal/middleware"
	"github.com/xxxsen/bioweaver/internal/notify"
	"github.com/xxxsen/bioweaver/internal/repo"
	"github.com/xxxsen/bioweaver/internal/schedule"
	"github.com/xxxsen/bioweaver/internal/service"
)

const shutdownTimeout = 15 * time.Second

type app struct {
	db       *sql.DB
	hub      *notify.Hub
	chapters *service.ChapterService
	seed     *service.SeedService
	deps     handler.RouterDeps
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	audioStore, err := filestore.New(cfg.Storage.Type, storeArgs(cfg, "audio"))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init audio store: %w", err)
	}
	bookStore, err := filestore.New(cfg.Storage.Type, storeArgs(cfg, "books"))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init book store: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, map[string]interface{}{
		"api_key":      cfg.AI.APIKey,
		"base_url":     cfg.AI.BaseURL,
		"http_referer": cfg.PublicBaseURL,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	rewriter := ai.NewRewriter(provider, ai.RewriterConfig{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     time.Duration(cfg.AI.Timeout) * time.Second,
	})
	tcfg, dedicated := cfg.ResolveTranscribe()
	transcriber := ai.NewTranscriber(ai.TranscriberConfig{
		APIKey:      tcfg.APIKey,
		BaseURL:     tcfg.BaseURL,
		Model:       tcfg.Model,
		HTTPReferer: cfg.PublicBaseURL,
		Timeout:     time.Duration(tcfg.Timeout) * time.Second,
	})

	telegram := notify.NewTelegram(cfg.Telegram)
	hub := notify.NewHub(telegram, notify.NewEmailSender(cfg.Mail), cfg.Mail.NotifyTo)

	userRepo := repo.NewUserRepo(conn)
	chapterRepo := repo.NewChapterRepo(conn)
	bookRepo := repo.NewBookRepo(conn)

	chapterService := service.NewChapterService(chapterRepo, audioStore, transcriber, rewriter, hub)
	bookService := service.NewBookService(chapterRepo, bookRepo, bookStore, hub, cfg.BookFormat)
	userService := service.NewUserService(userRepo, chapterRepo, bookRepo, audioStore, bookStore, hub)
	seedService := service.NewSeedService(userRepo, chapterRepo, bookRepo, audioStore, bookStore, hub)
	statsService := service.NewStatsService(userRepo, chapterRepo, bookRepo)
	healthService := service.NewHealthService(conn, audioStore, bookStore, telegram, provider, service.HealthConfig{
		Mail:            cfg.Mail,
		AudioLocation:   storeLocation(cfg, "audio"),
		BookLocation:    storeLocation(cfg, "books"),
		GenerationBase:  cfg.AI.BaseURL,
		GenerationModel: rewriter.DefaultModel(),
		Transcription: service.TranscriptionHealth{
			Configured: transcriber.Configured(),
			BaseURL:    transcriber.BaseURL(),
			Model:      transcriber.Model(),
			Dedicated:  dedicated,
		},
		Deep: cfg.HealthDeep,
	})

	logutil.GetLogger(ctx).Info("components ready",
		zap.String("storage", cfg.Storage.Type),
		zap.String("ai_provider", provider.Name()),
		zap.Bool("ai_configured", provider.Configured()),
		zap.Bool("transcribe_dedicated", dedicated),
		zap.Bool("telegram", telegram.Configured()),
		zap.Bool("smtp", cfg.Mail.Configured()),
	)

	return &app{
		db:       conn,
		hub:      hub,
		chapters: chapterService,
		seed:     seedService,
		deps: handler.RouterDeps{
			Users:           handler.NewUserHandler(userService),
			Chapters:        handler.NewChapterHandler(chapterService, cfg.MaxUploadBytes),
			Books:           handler.NewBookHandler(bookService),
			Admin:           handler.NewAdminHandler(statsService, seedService, healthService),
			Files:           handler.NewFileHandler(audioStore, bookStore),
			AdminToken:      cfg.AdminToken,
			UploadRateLimit: time.Duration(cfg.UploadRateLimitSeconds) * time.Second,
		},
	}, nil
}

func (a *app) Close() {
	a.hub.Wait()
	_ = a.db.Close()
}

func (a *app) Serve(cfg *config.Config) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logger := logutil.GetLogger(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewPendingPolishJob(a.chapters, cfg.Jobs.PendingPolishBatch), cfg.Jobs.PendingPolishSpec); err != nil {
		return fmt.Errorf("schedule pending polish: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, a.deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	logger.Info("http server listening", zap.String("addr", addr))
	srv := &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	if err := serveUntil(ctx, srv, ln, shutdownTimeout); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// serveUntil serves on ln until ctx is done, then stops accepting connections
// and waits up to timeout for in-flight requests.
func serveUntil(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}
	logutil.GetLogger(ctx).Info("server stopping...")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown http: %w", err)
	}
	<-errCh
	return nil
}

func storeArgs(cfg *config.Config, kind string) map[string]interface{} {
	public := cfg.Storage.PublicURL
	if cfg.Storage.Type == "s3" {
		prefix := cfg.Storage.S3.AudioPrefix
		if kind == "books" {
			prefix = cfg.Storage.S3.BookPrefix
		}
		return map[string]interface{}{
			"endpoint":   cfg.Storage.S3.Endpoint,
			"secret_id":  cfg.Storage.S3.SecretID,
			"secret_key": cfg.Storage.S3.SecretKey,
			"bucket":     cfg.Storage.S3.Bucket,
			"region":     cfg.Storage.S3.Region,
			"prefix":     prefix,
			"kind":       kind,
			"public_url": public,
			"use_ssl":    cfg.Storage.S3.UseSSL,
		}
	}
	return map[string]interface{}{
		"dir":        storeLocation(cfg, kind),
		"kind":       kind,
		"public_url": public,
	}
}

func storeLocation(cfg *config.Config, kind string) string {
	if cfg.Storage.Type == "s3" {
		prefix := cfg.Storage.S3.AudioPrefix
		if kind == "books" {
			prefix = cfg.Storage.S3.BookPrefix
		}
		return "s3://" + cfg.Storage.S3.Bucket + "/" + prefix
	}
	if kind == "books" {
		return cfg.Storage.BookDir
	}
	return cfg.Storage.AudioDir
}
