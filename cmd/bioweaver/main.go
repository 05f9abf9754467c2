package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bioweaver",
		Short: "bioweaver memoir backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run bioweaver server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			app, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Serve(cfg)
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "create the demo user, chapters and book",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			app, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			res, err := app.seed.SeedDemo(cmd.Context())
			if err != nil {
				return err
			}
			logutil.GetLogger(cmd.Context()).Info("demo seeded",
				zap.Int64("user_id", res.User.ID),
				zap.Int("created_chapters", res.CreatedChapters),
				zap.Int("created_books", res.CreatedBooks),
				zap.String("book_url", res.BookURL),
			)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json, environment variables override it")
	rootCmd.AddCommand(runCmd, seedCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}
