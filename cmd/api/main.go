package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"siteimage/internal/config"
	handlers "siteimage/internal/http/handler"
	"siteimage/internal/http/middleware"
	"siteimage/internal/imagehost/local"
	"siteimage/internal/instrument"
	"siteimage/internal/logging"
	tracing "siteimage/internal/otel"
	"siteimage/internal/selector"
	"siteimage/internal/service"
)

const maxUploadBytes = 20 << 20

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("failed to load configuration", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}

	logger := logging.Setup(cfg.LogLevel, time.Local)

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		logging.Fatal("failed to initialize tracing", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	// Image host for the configured provider, plus its database and object store when enabled
	sel, err := selector.New(ctx, cfg, selector.WithLogger(logger))
	if err != nil {
		logging.Fatal("failed to initialize image host", "provider", cfg.Images.Provider, "error", err)
	}
	defer sel.Close()

	metrics, err := instrument.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logging.Fatal("failed to register image host metrics", "error", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		logging.Fatal("failed to register http metrics", "error", err)
	}

	svc := service.NewImageService(instrument.Wrap(sel.Host(), metrics),
		service.WithObjectStorage(sel.Storage()),
		service.WithMaxUploadBytes(maxUploadBytes),
		service.WithLogger(logger),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    maxUploadBytes + 1<<20,
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(time.Local))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Local images and their derivatives are plain files under the upload folder
	if cfg.Images.Provider == local.Name {
		app.Use(cfg.Images.Local.URL, middleware.CacheControl(3600))
		app.Static(cfg.Images.Local.URL, cfg.Images.Local.Folder)
	}

	handlers.RegisterRoutes(app, svc)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("server starting", "addr", addr, "provider", sel.Host().Name())
	if err := app.Listen(addr); err != nil {
		logger.Error("failed to start server", "error", err)
	}
}
