package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voltmart/payments/internal/core/events"
	"github.com/voltmart/payments/internal/gateway"
	paymentpostgres "github.com/voltmart/payments/internal/payment/postgres"
	"github.com/voltmart/payments/internal/reconcile"
	"github.com/voltmart/payments/pkg/logger"
)

var (
	reconcileCmd = &cobra.Command{
		RunE:  runReconcile,
		Use:   "reconcile",
		Short: "Run the stale-payment reconciliation sweep",
		Long:  `Queries the gateway for payments stuck pending and applies definitive outcomes. Runs once with --once, otherwise on a cron schedule.`,
	}
	reconcileOnce bool
)

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileOnce, "once", false, "run a single sweep and exit")
}

func runReconcile(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}

	env := "development"
	if cfg.Observability.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env)
	log := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orm: %w", err)
	}

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		MerchantID: cfg.Gateway.MerchantID,
		TerminalID: cfg.Gateway.TerminalID,
	}, log)

	repo := paymentpostgres.NewOrderPaymentRepository(gormDB)
	eventBus := events.NewEventBus(log)
	events.RegisterAuditLog(eventBus, log)

	sweeper := reconcile.NewSweeper(
		repo,
		gatewayClient,
		eventBus,
		cfg.Reconcile.EffectiveStaleAfter(),
		cfg.Reconcile.EffectiveBatchSize(),
		cfg.Gateway.EffectiveConfirmTimeout(),
		log,
	)

	if reconcileOnce {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return sweeper.Sweep(ctx)
	}

	scheduler, err := sweeper.Schedule(cfg.Reconcile.EffectiveSchedule())
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal, stopping reconcile scheduler...", "signal", sig)

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}
