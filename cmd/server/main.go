package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goldbot/internal/config"
	deliveryhttp "goldbot/internal/delivery/http"
	"goldbot/internal/delivery/websocket"
	"goldbot/internal/domain"
	"goldbot/internal/infrastructure/capital"
	"goldbot/internal/infrastructure/db"
	"goldbot/internal/infrastructure/fcm"
	"goldbot/internal/infrastructure/logger"
	"goldbot/internal/infrastructure/telegram"
	"goldbot/internal/repository"
	"goldbot/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(serve())
}

// serve returns the process exit code once every deferred cleanup has run.
func serve() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("engine stopped", zap.Error(err))
		return 1
	}
	log.Info("engine stopped")
	return 0
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	// 1. Broker session
	broker := capital.NewClient(capital.Config{
		APIKey:         cfg.Broker.APIKey,
		Email:          cfg.Broker.Email,
		Password:       cfg.Broker.Password,
		BaseURL:        cfg.Broker.BaseURL(),
		RequestsPerSec: cfg.Broker.RequestsPerSec,
		ConfirmRetries: cfg.Broker.ConfirmRetries,
		ConfirmDelay:   cfg.Broker.ConfirmDelay,
	}, log.Named("capital"))

	if err := broker.CreateSession(ctx); err != nil {
		return fmt.Errorf("create broker session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := broker.DestroySession(closeCtx); err != nil {
			log.Warn("destroy broker session", zap.Error(err))
		}
	}()

	// 2. Journal. The writer goroutine starts once startup has succeeded.
	var journal domain.Journal = repository.NopJournal{}
	var async *repository.AsyncJournal
	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open journal database: %w", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate journal database: %w", err)
		}
		async = repository.NewAsyncJournal(repository.NewPostgresJournal(pool), cfg.Database.JournalBuffer, log.Named("journal"))
		journal = async
	} else {
		log.Warn("DATABASE_URL not set, journal disabled")
	}

	// 3. Notifications
	tokens := repository.NewTokenRepository()
	push, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, cfg.FirebaseCredJSON, tokens, log.Named("fcm"))
	if err != nil {
		return err
	}
	var svc *usecase.TradingService
	bot, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, func() domain.Snapshot { return svc.Snapshot() }, log.Named("telegram"))
	if err != nil {
		return err
	}
	notifier := usecase.Notifiers{push, bot}

	// 4. Engine
	svc = usecase.NewTradingService(usecase.Options{
		Broker:   broker,
		Journal:  journal,
		Notifier: notifier,
		Config:   cfg,
		Logger:   log.Named("engine"),
	})
	svc.DailyReset(ctx)
	if err := svc.LoadHistory(ctx); err != nil {
		return fmt.Errorf("load candle history: %w", err)
	}
	if err := svc.WarnUntracked(ctx); err != nil {
		log.Warn("list open positions", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	if async != nil {
		g.Go(func() error { return async.Run(gctx) })
	}
	scheduler := usecase.NewScheduler(svc, broker, cfg.Poll, log.Named("scheduler"))
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return bot.Run(gctx) })

	// 5. Status API
	gin.SetMode(gin.ReleaseMode)
	stream := websocket.NewHandler(svc, cfg.Poll.Tick, log.Named("ws"))
	router := deliveryhttp.NewRouter(deliveryhttp.Handlers{
		Status: deliveryhttp.NewStatusHandler(svc, deliveryhttp.Settings{
			Instrument: cfg.Broker.Instrument,
			Modes:      svc.Modes(),
			Risk:       cfg.Risk,
			SpreadMax:  cfg.Strategy.SpreadMax,
			PartialTP1: cfg.Strategy.PartialCloseTP1,
		}),
		Tokens:        deliveryhttp.NewTokenHandler(tokens),
		Notifications: deliveryhttp.NewNotificationHandler(notifier),
		Stream:        stream.Handle,
	}, log.Named("http"))

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.Info("status API listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("engine started",
		zap.String("instrument", cfg.Broker.Instrument),
		zap.String("account", cfg.Broker.AccountType),
		zap.Int("modes", len(svc.Modes())),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
