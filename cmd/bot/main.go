package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v5/pgxpool"
	chatgate "github.com/set-night/chatgate"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/handler"
	"github.com/set-night/chatgate/internal/httpapi"
	"github.com/set-night/chatgate/internal/middleware"
	"github.com/set-night/chatgate/internal/repository"
	"github.com/set-night/chatgate/internal/service"
	"github.com/set-night/chatgate/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store := openStorage(ctx, cfg)
	defer store.Close()
	sources, sessionRepo := store.sources, store.sessions

	// Initialize services
	access := service.NewAccessService(service.LoadTokens(ctx, logger, sources...))
	openAI := service.NewOpenAIService(cfg.OpenAIBaseURL, cfg.OpenAIKey)
	conversation := service.NewConversationService(service.ConversationOptions{
		ReplyMode:      cfg.ReplyMode,
		ReplayMode:     cfg.ReplayMode,
		AssistantID:    cfg.AssistantID,
		PromptID:       cfg.PromptID,
		VectorStoreIDs: cfg.VectorStoreIDs,
	}, logger)
	if err := conversation.Ready(); err != nil {
		slog.Warn("conversation not configured, turns will fail", "reply_mode", cfg.ReplyMode, "error", err)
	}
	sessions := service.NewSessionService(sessionRepo, cfg.Greeting)
	turns := service.NewTurnService(service.TurnDeps{
		Access:       access,
		Conversation: conversation,
		Sessions:     sessions,
		NewAPI:       func(key string) service.ChatAPI { return openAI.WithAPIKey(key) },
		Cfg:          cfg,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	if cfg.BotToken != "" {
		b, err := newBot(ctx, cfg, access, sessions, turns)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("starting bot")
			b.Start(ctx)
		}()
	}

	if cfg.HTTPEnabled {
		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Port),
			Handler: httpapi.New(httpapi.Deps{
				Access:      access,
				Sessions:    sessions,
				Turns:       turns,
				AllowOrigin: cfg.HTTPAllowOrigin,
				Logger:      logger,
			}).Router(),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("starting http server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("http server shutdown", "error", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}
	wg.Wait()
	return runErr
}

type storage struct {
	sources  []service.TokenSource
	sessions service.SessionRepository
	pool     *pgxpool.Pool
}

func (s *storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStorage collects the configured token sources and the session
// repository. An unreachable database is logged and skipped: sessions then
// live in memory and tokens come from the CSV source only.
func openStorage(ctx context.Context, cfg *config.Config) *storage {
	s := &storage{}
	if cfg.DatabaseURL != "" {
		pool, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Warn("database unavailable, continuing without it", "error", err)
		} else {
			s.pool = pool
			s.sources = append(s.sources, repository.NewTokenRepository(pool))
			s.sessions = repository.NewSessionRepository(pool)
		}
	}
	if cfg.TokensCSV != "" {
		s.sources = append(s.sources, repository.NewCSVTokenSource(cfg.TokensCSV))
	}
	if len(s.sources) == 0 {
		slog.Warn("no access token source available, every turn will be refused")
	}
	return s
}

func openDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	migrationsFS, err := fs.Sub(chatgate.MigrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	if err := repository.RunMigrations(databaseURL, migrationsFS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return pool, nil
}

func newBot(ctx context.Context, cfg *config.Config, access *service.AccessService, sessions *service.SessionService, turns *service.TurnService) (*bot.Bot, error) {
	// Set once the bot exists; the handler and reporter below are only
	// invoked after Start.
	var (
		h        *handler.Handler
		tgLogger *telegram.TelegramLogger
	)

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(middleware.ReporterFunc(func(err error, where string) {
				tgLogger.LogError(err, where)
			})),
			middleware.Logging(),
			middleware.RateLimit(middleware.NewLimiter(cfg.RateLimitPerMinute, config.RateLimitWindow)),
			middleware.SessionLoader(sessions),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h != nil {
				h.HandleDefault(ctx, b, update)
			}
		}),
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bot info: %w", err)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("drop pending updates", "error", err)
		}
	}

	tgLogger = telegram.NewTelegramLogger(b, cfg)
	h = handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Access:   access,
		Sessions: sessions,
		Turns:    turns,
		TgLogger: tgLogger,
	})
	h.Register()
	return b, nil
}
