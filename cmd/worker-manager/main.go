// cmd/worker-manager/main.go
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"visa-portal/internal/common/aws"
	"visa-portal/internal/common/bootstrap"
	"visa-portal/internal/common/camunda"
	"visa-portal/internal/common/config"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/observability"
	"visa-portal/internal/http/handler"
	"visa-portal/internal/importer"
	"visa-portal/internal/letter"
	"visa-portal/internal/search"
	"visa-portal/internal/store"

	gl "visa-portal/internal/workers/visa/generate-letter"
	ia "visa-portal/internal/workers/visa/import-applications"
	ns "visa-portal/internal/workers/visa/notify-status"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("service", "worker-manager"))
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	if !cfg.Camunda.Enabled {
		zapLog.Fatal("camunda.enabled is false; the worker manager has nothing to run")
	}

	obs, err := observability.New("worker-manager")
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	backends, err := bootstrap.Connect(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("backend connection failed", zap.Error(err))
	}
	defer backends.Close()

	st := store.New(backends.Postgres.DB)
	if err := st.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Delivery channels ---
	var mailer *aws.Mailer
	if cfg.Integrations.AWS.SES.Enabled {
		if mailer, err = aws.NewMailer(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SES.FromEmail); err != nil {
			zapLog.Fatal("SES init failed", zap.Error(err))
		}
	}
	var sms *aws.SMSSender
	if cfg.Integrations.AWS.SNS.Enabled {
		if sms, err = aws.NewSMSSender(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.DefaultSMSSenderID); err != nil {
			zapLog.Fatal("SNS init failed", zap.Error(err))
		}
	}

	renderer := letter.NewRenderer(
		letter.ConfigFrom(cfg.Letter),
		letter.NewTemplateCache(cfg.Letter.TemplatePath),
		letter.NewPDFCPUEngine(cfg.Letter.FontSize),
		log,
	)

	var indexer importer.Indexer
	if backends.Elasticsearch != nil {
		indexer = search.NewIndex(backends.Elasticsearch.Client, cfg.Database.Elasticsearch.Index, log)
	}
	resolver := importer.NewCachedMeetingResolver(
		backends.Redis.Client,
		importer.NewStoreMeetingResolver(st.Meetings()),
		time.Duration(cfg.Import.MeetingCacheTTL)*time.Second,
		log,
	)
	reconciler := importer.NewReconciler(st, resolver, indexer, log)

	// --- Register workers ---
	var letterMailer gl.Mailer
	var statusMailer ns.EmailSender
	if mailer != nil {
		letterMailer, statusMailer = mailer, mailer
	}
	var smsSender ns.SMSSender
	if sms != nil {
		smsSender = sms
	}

	handlers := map[string]camunda.JobHandler{
		gl.TaskType: gl.NewHandler(gl.LoadConfig(cfg), st, renderer, letterMailer, log),
		ns.TaskType: ns.NewHandler(ns.LoadConfig(cfg), st, statusMailer, smsSender, log),
		ia.TaskType: ia.NewHandler(ia.LoadConfig(cfg), reconciler, st.Audit(), log),
	}

	zeebe := backends.Zeebe.GetClient()
	var workers []*camunda.CamundaWorker
	for taskType, h := range handlers {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			continue
		}
		workers = append(workers, camunda.NewWorker(zeebe, taskType, config.GetWorkerConfig(cfg, taskType), h, obs, log))
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	checks := make([]handler.Checker, 0, 4)
	for _, c := range backends.Checkers() {
		checks = append(checks, c)
	}
	health := handler.NewHealthHandler(checks...)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", health.Health)
	engine.GET("/ready", health.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down meter provider", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
