// cmd/api-server/main.go
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
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"visa-portal/internal/common/auth"
	"visa-portal/internal/common/bootstrap"
	"visa-portal/internal/common/camunda"
	"visa-portal/internal/common/config"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/observability"
	"visa-portal/internal/common/validation"
	"visa-portal/internal/exporter"
	"visa-portal/internal/http/handler"
	"visa-portal/internal/http/router"
	"visa-portal/internal/importer"
	"visa-portal/internal/letter"
	"visa-portal/internal/search"
	"visa-portal/internal/service"
	"visa-portal/internal/store"
)

const serviceName = "visa-portal-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("service", serviceName))
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting API server...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(serviceName)
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

	validator, err := validation.NewValidator()
	if err != nil {
		zapLog.Fatal("schema validator init failed", zap.Error(err))
	}

	templates := letter.NewTemplateCache(cfg.Letter.TemplatePath)
	// Fail at startup rather than on the first letter request.
	if _, err := templates.Get(ctx); err != nil {
		zapLog.Fatal("letter template unusable", zap.String("path", cfg.Letter.TemplatePath), zap.Error(err))
	}
	renderer := letter.NewRenderer(
		letter.ConfigFrom(cfg.Letter),
		templates,
		letter.NewPDFCPUEngine(cfg.Letter.FontSize),
		log,
	)

	deps := service.ApplicationDeps{
		Store:     st,
		Validator: validator,
		Renderer:  renderer,
		Logger:    log,
	}
	var importIndexer importer.Indexer
	if backends.Elasticsearch != nil {
		idx := search.NewIndex(backends.Elasticsearch.Client, cfg.Database.Elasticsearch.Index, log)
		deps.Indexer, deps.Searcher, importIndexer = idx, idx, idx
	}
	if backends.Zeebe != nil {
		deps.Starter = camunda.NewProcessStarter(backends.Zeebe, cfg.Camunda.LetterProcess)
	}
	apps := service.NewApplicationService(deps)

	resolver := importer.NewCachedMeetingResolver(
		backends.Redis.Client,
		importer.NewStoreMeetingResolver(st.Meetings()),
		time.Duration(cfg.Import.MeetingCacheTTL)*time.Second,
		log,
	)
	transfer := service.NewTransferService(
		importer.NewReconciler(st, resolver, importIndexer, log),
		exporter.New(st.Applications(), st.Meetings(), log),
		st.Audit(),
		log,
	)

	checks := make([]handler.Checker, 0, 4)
	for _, c := range backends.Checkers() {
		checks = append(checks, c)
	}

	kc := cfg.Auth.Keycloak
	gin.SetMode(gin.ReleaseMode)
	engine := router.New(router.Handlers{
		Applications: handler.NewApplicationHandler(apps, log),
		Admin:        handler.NewAdminHandler(transfer, apps, cfg.Server.MaxUploadMB),
		Meetings:     handler.NewMeetingHandler(service.NewMeetingService(st.Meetings(), log)),
		Health:       handler.NewHealthHandler(checks...),
	}, router.RouterConfig{
		ServiceName:   serviceName,
		Auth:          auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret, kc.AdminRole),
		LetterLimiter: rate.NewLimiter(rate.Limit(cfg.Server.LetterRatePerSecond), cfg.Server.LetterBurst),
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down meter provider", zap.Error(err))
	}

	zapLog.Info("API server stopped gracefully")
}
