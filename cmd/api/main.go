package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/atelierhub/backend/db/migrations"
	"github.com/atelierhub/backend/internal/auth"
	"github.com/atelierhub/backend/internal/catalog"
	"github.com/atelierhub/backend/internal/commission"
	"github.com/atelierhub/backend/internal/config"
	"github.com/atelierhub/backend/internal/guest"
	"github.com/atelierhub/backend/internal/messaging"
	"github.com/atelierhub/backend/internal/middleware"
	"github.com/atelierhub/backend/internal/notify"
	"github.com/atelierhub/backend/internal/payments"
	"github.com/atelierhub/backend/internal/reminders"
	"github.com/atelierhub/backend/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DB.URL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	if err := migrations.Run(cfg.DB.URL); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	serviceRepo := repository.NewServiceRepo(pool)
	transactionRepo := repository.NewTransactionRepo(pool)
	quoteRepo := repository.NewQuoteRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)
	attachmentRepo := repository.NewAttachmentRepo(pool)
	notificationRepo := repository.NewNotificationRepo(pool)
	guestTokenRepo := repository.NewGuestTokenRepo(pool)

	// Services
	authSvc := auth.NewService(accountRepo, cfg.Auth.JWTSecret)
	catalogSvc := catalog.NewService(serviceRepo)
	guestSvc := guest.NewService(guestTokenRepo)
	dispatcher := notify.NewDispatcher(&notify.LogSender{Logger: logger}, logger)
	gateway := payments.NewHTTPGateway(cfg.Payments.GatewayURL, cfg.Payments.GatewayKey)

	blobs, err := messaging.NewFSStore(cfg.Attachments.Dir)
	if err != nil {
		slog.Error("Failed to prepare attachment storage", "error", err)
		os.Exit(1)
	}

	commissionSvc := commission.NewService(pool, transactionRepo, quoteRepo, messageRepo,
		serviceRepo, accountRepo, guestSvc, gateway, dispatcher, logger)
	messagingSvc := messaging.NewService(transactionRepo, messageRepo, attachmentRepo,
		accountRepo, blobs, dispatcher, logger)

	// Reminder scheduler on River
	scheduler := reminders.NewScheduler(pool, transactionRepo, notificationRepo, accountRepo, dispatcher, logger)
	workers := river.NewWorkers()
	river.AddWorker(workers, reminders.NewWorker(scheduler))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 5},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.Reminders.Interval),
				func() (river.JobArgs, *river.InsertOpts) {
					return reminders.ScanArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Handlers
	authHandler := auth.NewHandler(authSvc, logger)
	catalogHandler := catalog.NewHandler(catalogSvc, logger)
	messagingHandler := messaging.NewHandler(messagingSvc, logger)
	commissionHandler := commission.NewHandler(commissionSvc, messagingSvc, logger)

	identity := middleware.Identity(authSvc, guestSvc, accountRepo)

	mux := http.NewServeMux()
	RegisterV1Routes(mux, identity, authHandler, catalogHandler, commissionHandler, messagingHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Guest-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (runs the reminder scans)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + strconv.Itoa(cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
