package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"notary/internal/attestation"
	"notary/internal/bootstrap"
	"notary/internal/config"
	"notary/internal/content"
	"notary/internal/fanout"
	handlers "notary/internal/http/handler"
	"notary/internal/http/middleware"
	"notary/internal/logging"
	tracing "notary/internal/otel"
	"notary/internal/payment"
	"notary/internal/service"
)

// @title Document Notary API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(cfg.Location())
	log := logger.Component("main")

	fatal := func(msg string, err error) {
		log.Error(msg, err, nil)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		fatal("tracing_init_failed", err)
	}
	defer shutdownTracing(context.Background())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	price, err := payment.ParseWei(cfg.Ledger.PriceWei)
	if err != nil {
		fatal("invalid_price", err)
	}
	minBalance, err := payment.ParseWei(cfg.Ledger.MinOperatorBalance)
	if err != nil {
		fatal("invalid_operator_min_balance", err)
	}

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		fatal("backend_init_failed", err)
	}
	defer backend.Close()

	ledger, err := bootstrap.OpenLedger(ctx, cfg.Ledger, minBalance)
	if err != nil {
		fatal("ledger_init_failed", err)
	}

	// Finish publishes interrupted by a previous crash before taking new work.
	if n, err := backend.Publisher.Resume(ctx); err != nil {
		log.Error("upload_resume_failed", err, nil)
	} else if n > 0 {
		log.Info("uploads_resumed", map[string]any{"count": n})
	}

	if topic, err := backend.Log.EnsureTopic(ctx); err != nil {
		// Publishing retries topic creation lazily.
		log.Error("topic_ensure_failed", err, nil)
	} else {
		log.Info("topic_ready", map[string]any{"topic_id": topic})
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notary_feed_dropped_total",
		Help: "Events dropped for slow live listeners.",
	})
	reg.MustRegister(dropped)
	feed := fanout.New(fanout.WithDropHook(dropped.Inc))

	svcMetrics, err := service.NewMetrics(reg)
	if err != nil {
		fatal("metrics_init_failed", err)
	}

	svc := service.NewNotaryService(service.Deps{
		Repo:       backend.Repo,
		Store:      backend.Publisher,
		Tokens:     backend.Tokens,
		Log:        backend.Log,
		Payments:   payment.NewVerifier(ledger, cfg.Ledger),
		Summarizer: content.NewSummarizer(cfg.OpenAI),
		Feed:       feed,
		Logger:     logger.Component("notary"),
		Metrics:    svcMetrics,
	}, service.Options{
		Recipient:          cfg.Ledger.Recipient,
		Price:              price,
		MinOperatorBalance: minBalance,
		ExternalTimeout:    cfg.ExternalTimeout,
	})

	if cfg.Agent.Enabled {
		signer, err := attestation.NewSigner(cfg.Agent.SigningKeyHex)
		if err != nil {
			fatal("agent_signer_invalid", err)
		}
		agentMetrics, err := attestation.NewMetrics(reg)
		if err != nil {
			fatal("metrics_init_failed", err)
		}
		agent := attestation.NewAgent(attestation.Deps{
			Log:     backend.Log,
			Store:   backend.Publisher,
			Repo:    backend.Repo,
			Signer:  signer,
			Feed:    feed,
			Logger:  logger.Component("agent"),
			Metrics: agentMetrics,
		}, cfg.Agent, cfg.ExternalTimeout)

		go func() {
			if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("agent_exited", err, nil)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    handlers.BodyLimit(cfg.MaxFileMB),
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.RequestLogger(logger.Component("http")))

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal("metrics_init_failed", err)
	}
	app.Use(promMiddleware.Handler())

	var db handlers.Pinger
	if backend.DB != nil {
		db = backend.DB
	}

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:             db,
		Notary:         svc,
		Feed:           feed,
		TopicID:        backend.Log.TopicID,
		Gatherer:       reg,
		MaxUploadBytes: int64(cfg.MaxFileMB) << 20,
		Done:           ctx.Done(),
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown_failed", err, nil)
		}
	}()

	log.Info("server_starting", map[string]any{"port": cfg.Port, "backend": cfg.Backend})
	if err := app.Listen(":" + cfg.Port); err != nil {
		fatal("server_failed", err)
	}
	log.Info("server_stopped", nil)
}
