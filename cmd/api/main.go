package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/clock"
	"github.com/zhouzirui/crossview/backend/internal/config"
	"github.com/zhouzirui/crossview/backend/internal/handler"
	chatHandler "github.com/zhouzirui/crossview/backend/internal/handler/chat"
	"github.com/zhouzirui/crossview/backend/internal/logging"
	"github.com/zhouzirui/crossview/backend/internal/metrics"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	"github.com/zhouzirui/crossview/backend/internal/service/chat"
	"github.com/zhouzirui/crossview/backend/internal/service/scheduler"
	"github.com/zhouzirui/crossview/backend/internal/service/survey"
	"github.com/zhouzirui/crossview/backend/internal/store"
	"github.com/zhouzirui/crossview/backend/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store_close_failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	labels := participant.Labels{A: cfg.Match.GroupALabel, B: cfg.Match.GroupBLabel}
	sched := scheduler.New(clock.NewReal(), logger)
	registry := participant.NewMemoryRegistry()
	wsOpts := transport.DefaultOptions()
	wsOpts.ReadLimit = cfg.Realtime.ReadLimit
	hub := transport.NewWSHub(wsOpts, logger)

	chatSvc := chat.NewService(chat.Deps{
		Scheduler: sched,
		Hub:       hub,
		Store:     st,
		Registry:  registry,
		Metrics:   m,
		Logger:    logger,
	}, chat.Config{
		SessionDuration:  cfg.Match.SessionDuration,
		GraceFirst:       cfg.Match.GraceFirst,
		GraceSecond:      cfg.Match.GraceSecond,
		RemovalDelay:     cfg.Match.RemovalDelay,
		WriteTimeout:     cfg.Store.WriteTimeout,
		MaxMessageLength: cfg.Match.MaxMessageLength,
		ViewsExcerpt:     cfg.Match.ViewsExcerpt,
		FactorsExcerpt:   cfg.Match.FactorsExcerpt,
		Labels:           labels,
	})
	surveySvc := survey.NewService(sched, registry, st, labels, m, logger)

	router := handler.NewRouter(handler.Deps{
		ChatSvc:   chatSvc,
		SurveySvc: surveySvc,
		Hub:       hub,
		Store:     st,
		Metrics:   m,
		Gatherer:  reg,
		Limits: chatHandler.Limits{
			EventsPerSecond: cfg.Realtime.EventsPerSecond,
			Burst:           cfg.Realtime.EventBurst,
		},
		StaticDir:   cfg.Server.StaticDir,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("server_listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server_error", zap.Error(err))
	}
	logger.Info("server_stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
