package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autocare-crm/internal/audit"
	"autocare-crm/internal/auth"
	"autocare-crm/internal/config"
	"autocare-crm/internal/followup"
	"autocare-crm/internal/httpapi"
	"autocare-crm/internal/notify"
	"autocare-crm/internal/optout"
	"autocare-crm/internal/reporting"
	"autocare-crm/internal/revenue"
	"autocare-crm/pkg/logger"
	"autocare-crm/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Services. The lifecycle and revenue sides reference each other through
	// narrow interfaces; the revenue ledger is attached after construction.
	gateway := notify.NewHTTPGateway(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.SenderNumber, cfg.SMS.SendTimeout)
	notifySvc := notify.NewService(notify.NewPostgresRepository(db), gateway, log, cfg.SMS.SendTimeout)

	followupSvc := followup.NewService(followup.NewPostgresRepository(db), followup.Options{
		Notifier:            notifySvc,
		Logger:              log,
		MaxCallbackAttempts: cfg.FollowUp.MaxCallbackAttempts,
	})
	revenueSvc := revenue.NewService(revenue.NewPostgresRepository(db), followupSvc, log)
	followupSvc.SetRevenueLedger(revenueSvc)

	optoutSvc := optout.NewService(optout.NewPostgresRepository(db), optOutApplier{followupSvc}, log)
	reportingSvc := reporting.NewService(reporting.NewPostgresSource(db), log)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	handlers := httpapi.Handlers{
		Auth:      authManager,
		FollowUp:  followupSvc,
		Revenue:   revenueSvc,
		OptOut:    optoutSvc,
		Notify:    notifySvc,
		Reporting: reportingSvc,
		Audit:     auditSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	registerRoutes(r, handlers, auth.RequireAccessToken(authManager), httpapi.CaseLock(rdb, 10*time.Second))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// optOutApplier adapts the lifecycle service to the opt-out workflow's
// apply contract (the workflow only needs errors back, not case state).
type optOutApplier struct {
	svc *followup.Service
}

func (a optOutApplier) ApplyAll(ctx context.Context, caseID, reason string) error {
	_, err := a.svc.ApplyOptOutAll(ctx, caseID, reason)
	return err
}

func (a optOutApplier) ApplyCurrentStage(ctx context.Context, caseID, reason string) error {
	_, err := a.svc.ApplyOptOutCurrentStage(ctx, caseID, reason)
	return err
}

func (a optOutApplier) ApplyRemaining(ctx context.Context, caseID, reason string) error {
	_, err := a.svc.ApplyOptOutRemaining(ctx, caseID, reason)
	return err
}

func (a optOutApplier) ApplyCategories(ctx context.Context, caseID string, categories []string) error {
	_, err := a.svc.ApplyOptOutCategories(ctx, caseID, categories)
	return err
}
