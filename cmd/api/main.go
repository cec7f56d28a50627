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

	"tg-storefront/internal/bot"
	"tg-storefront/internal/config"
	"tg-storefront/internal/database"
	"tg-storefront/internal/events"
	"tg-storefront/internal/handler"
	"tg-storefront/internal/metrics"
	"tg-storefront/internal/repository"
	"tg-storefront/internal/router"
	"tg-storefront/internal/service"
	"tg-storefront/internal/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Telegram.Validate(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger, "storefront-api")
	logger.Info().Str("bot_mode", cfg.Telegram.BotMode).Msg("starting storefront API server")

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Outbound integrations
	tg := telegram.NewClient(cfg.Telegram, m, logger)
	publisher := events.NewPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	// Initialize services
	productService := service.NewProductService(productRepo, cfg.Cache, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, tg, publisher, cfg.Telegram, logger)

	frontEnd := bot.New(tg, orderService, cfg.Telegram, logger)

	routes := router.Config{
		Products: handler.NewProductHandler(productService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		DB:       pool,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		APIKey:   cfg.Auth.APIKey,
		Logger:   logger,
	}
	if cfg.Telegram.BotMode == config.BotModeWebhook {
		routes.Webhook = frontEnd.WebhookHandler(cfg.Telegram.WebhookSecret)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router.New(routes),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.Telegram.BotMode == config.BotModePoll {
		g.Go(func() error {
			return frontEnd.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
