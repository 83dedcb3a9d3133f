package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"hearthpay/internal/adapter/gateway"
	httpadp "hearthpay/internal/adapter/http"
	"hearthpay/internal/adapter/middleware"
	"hearthpay/internal/adapter/notify"
	"hearthpay/internal/adapter/repository/mysql"
	"hearthpay/internal/config"
	"hearthpay/internal/infrastructure/cache"
	"hearthpay/internal/infrastructure/db"
	"hearthpay/internal/infrastructure/logging"
	"hearthpay/internal/orchestrator"
	"hearthpay/internal/usecase/collections"
	"hearthpay/internal/usecase/servicing"
	"hearthpay/pkg/metrics"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		logger.Fatal("mysql connect", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}

	// Repositories and unit of work
	loanRepo := mysql.NewLoanRepository(gdb)
	paymentRepo := mysql.NewPaymentRepository(gdb)
	auditRepo := mysql.NewAuditRepository(gdb)
	uow := mysql.NewGormUoW(gdb)

	// Outbound adapters
	gw := gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout, logger)
	var notifier notify.Dispatcher = notify.Noop{}
	if cfg.NotifyBaseURL != "" {
		notifier = notify.NewHTTPDispatcher(cfg.NotifyBaseURL, cfg.NotifyTimeout, logger)
	}

	collector := metrics.NewCollector()

	// Usecases
	col := collections.NewUsecase(uow, loanRepo, notifier, logger)
	svc := servicing.NewUsecase(uow, loanRepo, paymentRepo, col, notifier,
		servicing.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}, logger)

	orch := orchestrator.New(paymentRepo, loanRepo, auditRepo, gw, col, notifier, collector, orchestrator.Policy{
		Workers:        cfg.SweepWorkers,
		MaxRetries:     cfg.MaxRetries,
		Backoff:        cfg.RetryBackoff,
		GraceDays:      cfg.GraceDays,
		GatewayTimeout: cfg.GatewayTimeout,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cron-driven sweep
	runner := orchestrator.NewRunner(logger, ctx)
	if _, err := runner.Add(cfg.SweepCron, func(jctx context.Context) {
		if _, err := orch.Sweep(jctx, time.Now().UTC()); err != nil {
			logger.Error("scheduled sweep", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("cron spec", zap.String("spec", cfg.SweepCron), zap.Error(err))
	}
	runner.Start()
	defer runner.Stop()

	// Handlers
	h := httpadp.NewHandler()
	loanH := httpadp.NewLoanHandler(svc)
	paymentH := httpadp.NewPaymentHandler(svc)
	collectionsH := httpadp.NewCollectionsHandler(col)
	callbackH := httpadp.NewTransferCallbackHandler(svc)
	sweepH := httpadp.NewSweepHandler(orch)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Recover())

	// routes
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	idem := middleware.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second, logger)

	v1 := e.Group("/v1")
	v1.POST("/loans", loanH.CreateLoan, idem)
	v1.GET("/loans/:loan_id", loanH.GetLoan)
	v1.GET("/loans/:loan_id/payments", loanH.ListPayments)
	v1.GET("/loans/:loan_id/payoff-quote", loanH.GetPayoffQuote)
	v1.POST("/loans/:loan_id/payoff", loanH.InitiatePayoff, idem)
	v1.POST("/payments/:payment_id/retry", paymentH.RetryPayment, idem)
	v1.POST("/payments/:payment_id/mark-paid", paymentH.MarkPaymentPaid, idem)
	v1.GET("/collections/queue/:band", collectionsH.Queue)
	v1.POST("/loans/:loan_id/collections", collectionsH.SendToCollections, idem)
	v1.POST("/loans/:loan_id/notes", collectionsH.AddNote, idem)
	v1.GET("/loans/:loan_id/notes", collectionsH.ListNotes)
	// Provider webhooks retry on their own; the settlement path is
	// idempotent by construction, so no dedup middleware here.
	v1.POST("/transfers/callback", callbackH.HandleCallback)

	e.POST("/internal/sweep", sweepH.Run)

	addr := ":" + cfg.AppPort
	logger.Info("listening", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
