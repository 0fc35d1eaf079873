package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/internal/core/events"
	"github.com/voltmart/payments/internal/gateway"
	"github.com/voltmart/payments/internal/payment"
	paymentpostgres "github.com/voltmart/payments/internal/payment/postgres"
	"github.com/voltmart/payments/internal/transport/rest"
	"github.com/voltmart/payments/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that drives the payment confirmation flow`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := "development"
	if config.Observability.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:    config.Gateway.BaseURL,
		APIKey:     config.Gateway.APIKey,
		MerchantID: config.Gateway.MerchantID,
		TerminalID: config.Gateway.TerminalID,
	}, log)

	confirmTimeout := config.Gateway.EffectiveConfirmTimeout()

	var guard payment.InFlightGuard
	if config.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		guard = payment.NewRedisGuard(redisClient)
	} else {
		guard = payment.NewMemoryGuard()
	}

	repo := paymentpostgres.NewOrderPaymentRepository(gormDB)
	reversals := payment.NewReversalService(gatewayClient, confirmTimeout, log)
	stepUp := payment.NewStepUpRedirector(
		config.StepUp.ReturnURL,
		config.StepUp.TokenSecret,
		config.StepUp.EffectiveTokenTTL(),
		log,
	)
	eventBus := events.NewEventBus(log)
	events.RegisterAuditLog(eventBus, log)

	stateMachine := payment.NewStateMachine(repo, gatewayClient, reversals, guard, stepUp, eventBus, confirmTimeout, log)
	paymentHandler := payment.NewHandler(stateMachine, stepUp, log)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, paymentHandler, log)

	return &Dependencies{
		Config: config,
		DB:     db,
		Router: router,
		Logger: log,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
