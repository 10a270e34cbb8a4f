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

	"golang.org/x/sync/errgroup"

	"car-inspect/config"
	"car-inspect/internal/api/telegram"
	"car-inspect/internal/container"
	"car-inspect/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем модели и сервисы приложения
	oracles, registry := container.BuildOracles(ctx, cfg, log)
	appContainer := container.New(cfg, oracles, registry, log)
	defer func() {
		if err := appContainer.Close(); err != nil {
			log.Warnw("release oracles", "error", err)
		}
	}()

	log.Infow("pipeline ready",
		"oracles", appContainer.FusionEngine.Available(),
		"classifier", oracles.Classifier != nil,
		"target_rate", cfg.TargetRate,
	)

	g, gctx := errgroup.WithContext(ctx)

	srv := appContainer.NewHTTPServer(cfg.HTTPAddr)
	g.Go(func() error {
		log.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.UserService, appContainer.InspectionService, log.Named("telegram"))
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("create bot: %w", err)
		}
		g.Go(func() error {
			log.Info("bot is running")
			return bot.Run(gctx)
		})
	} else {
		log.Info("TELEGRAM_TOKEN is not set, bot disabled")
	}

	if err := g.Wait(); err != nil {
		log.Errorw("service stopped with error", "error", err)
		return err
	}
	log.Info("service stopped")
	return nil
}

