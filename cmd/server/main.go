package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/config"
	"github.com/dealroom/deal-server-go/internal/database"
	"github.com/dealroom/deal-server-go/internal/events"
	"github.com/dealroom/deal-server-go/internal/handler"
	"github.com/dealroom/deal-server-go/internal/jobs"
	"github.com/dealroom/deal-server-go/internal/middleware"
	"github.com/dealroom/deal-server-go/internal/redis"
	"github.com/dealroom/deal-server-go/internal/repository"
	"github.com/dealroom/deal-server-go/internal/service"
	"github.com/dealroom/deal-server-go/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	store, err := storage.NewDiskStore(cfg.StorageDir, cfg.StorageBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document store")
	}

	creatorRepo := repository.NewCreatorRepository(db.DB)
	tokenRepo := repository.NewAccessTokenRepository(db.DB)
	dealRepo := repository.NewDealRepository(db.DB)
	invoiceRepo := repository.NewInvoiceRepository(db.DB)

	broker := events.NewBroker(redisClient)
	defer broker.Close()

	esignClient := service.NewESignClient(
		cfg.ESignProvider, cfg.ESignBaseURL, cfg.ESignAPIKey,
		cfg.ESignWebhookSecret, cfg.ProviderTimeout(),
	)

	tokenService := service.NewTokenService(tokenRepo, creatorRepo)
	invoiceService := service.NewInvoiceService(invoiceRepo, dealRepo, broker)

	invoiceWorker := jobs.NewInvoiceWorker(invoiceService, config.WorkerQueueSize)
	scanWorker := jobs.NewScanWorker(dealRepo, broker, config.WorkerQueueSize)

	dealService := service.NewDealService(db, dealRepo, tokenService, scanWorker, broker)
	pipeline := service.NewContractPipeline(
		dealRepo, esignClient, store, invoiceWorker, broker, cfg.DownloadTimeout(),
	)

	authMiddleware := middleware.NewAuthMiddleware(creatorRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	signatureMiddleware := middleware.NewESignSignatureMiddleware(esignClient, cfg.ESignWebhookSecret != "")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	publicHandler := handler.NewPublicHandler(tokenService, dealService, cfg.ContractReadyTokenTTL())
	esignHandler := handler.NewESignHandler(pipeline, dealService, esignClient)
	dealHandler := handler.NewDealHandler(dealService)
	eventsHandler := handler.NewEventsHandler(broker)
	opsHandler := handler.NewOpsHandler(creatorRepo, tokenService, cfg.OpsPasswordHash, cfg.DealDetailsTokenTTL())

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware.PublicHandler)
		r.Mount("/", publicHandler.Routes())
	})

	r.Route("/esign", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(signatureMiddleware.Handler)
			r.Post("/webhook", esignHandler.Webhook)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)
			r.Mount("/", esignHandler.Routes())
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)
		r.Mount("/deals", dealHandler.Routes())
	})

	r.Route("/ops", func(r chi.Router) {
		r.Mount("/", opsHandler.Routes())
	})

	r.Handle("/documents/*", http.StripPrefix("/documents/",
		http.FileServer(http.Dir(cfg.StorageDir))))

	cleanupJob := jobs.NewCleanupJob(tokenRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	invoiceWorker.Start()
	defer invoiceWorker.Stop()

	scanWorker.Start()
	defer scanWorker.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
