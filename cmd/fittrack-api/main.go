package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"

	"github.com/aaronromeo/fittrack/internal/config"
	"github.com/aaronromeo/fittrack/internal/httpapi"
	"github.com/aaronromeo/fittrack/internal/llm"
	"github.com/aaronromeo/fittrack/internal/llm/provider"
	"github.com/aaronromeo/fittrack/internal/logging"
	"github.com/aaronromeo/fittrack/internal/sqlite"
	"github.com/aaronromeo/fittrack/internal/trainer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Debug)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("fittrack-api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := sqlite.NewDatabase(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	logger.InfoContext(ctx, "connected to db", slog.String("url", cfg.DatabaseURL))

	p, err := newProvider(cfg)
	if err != nil {
		return err
	}
	gw := llm.New(
		llm.WithProvider(p),
		llm.WithLogger(logger),
		llm.WithTimeout(cfg.LlmTimeout),
		llm.WithSampling(cfg.LlmTemperature, cfg.LlmMaxTokens),
	)
	if p != nil {
		if err := p.Validate(); err != nil {
			logger.WarnContext(ctx, "llm provider not usable, replies will degrade",
				slog.String("provider", p.Name()), slog.Any("error", err))
		}
	}

	svc := trainer.New(gw,
		sqlite.NewWorkoutStore(db, logger),
		sqlite.NewConversationStore(db, logger),
		trainer.WithLogger(logger),
		trainer.WithHistoryLimit(cfg.HistoryLimit),
		trainer.WithArchiveAfter(cfg.ArchiveAfter),
	)

	app := httpapi.NewServer(svc,
		httpapi.WithLogger(logger),
		httpapi.WithDefaultUser(cfg.DefaultUserID),
		httpapi.WithHealthCheck(db.Ping),
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.ArchiveEnabled() {
		c := cron.New()
		if err := svc.ScheduleArchive(c, cfg.ArchiveSchedule); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
		logger.InfoContext(ctx, "archive sweeper scheduled", slog.String("schedule", cfg.ArchiveSchedule))
	}

	g.Go(func() error {
		logger.InfoContext(ctx, "listening", slog.String("addr", cfg.Addr), slog.String("provider", gw.Provider()))
		return app.Listen(cfg.Addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}

// newProvider returns nil for "none", which makes every gateway call degrade.
func newProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.LlmProvider {
	case "openai":
		return provider.NewOpenAIProvider(
			provider.WithAPIKey(cfg.OpenaiKey),
			provider.WithModel(cfg.LlmModel),
		), nil
	case "gemini":
		return provider.NewGeminiProvider(
			provider.WithGeminiKey(cfg.GeminiKey),
			provider.WithGeminiModel(cfg.GeminiModel),
			provider.WithGeminiBaseURL(cfg.GeminiBaseURL),
		), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LlmProvider)
	}
}
