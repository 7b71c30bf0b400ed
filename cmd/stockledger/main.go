package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/commercefull/stockledger/docs"
	"github.com/commercefull/stockledger/internal/app"
	httpdelivery "github.com/commercefull/stockledger/internal/delivery/http"
	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	resdomain "github.com/commercefull/stockledger/internal/reservation/domain"
	thdomain "github.com/commercefull/stockledger/internal/threshold/domain"
	trdomain "github.com/commercefull/stockledger/internal/transfer/domain"
	"github.com/commercefull/stockledger/kafka"
	"github.com/commercefull/stockledger/pkg/database"
	"github.com/commercefull/stockledger/pkg/logger"
	"github.com/commercefull/stockledger/pkg/tracing"
)

func main() {
	// Load .env if present, real environments set variables directly
	_ = godotenv.Load()

	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "stockledger-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting stock ledger service")

	// Initialize tracer
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "stockledgerdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := db.AutoMigrate(
		&ledgerdomain.StockRecord{},
		&ledgerdomain.LedgerEntry{},
		&resdomain.Reservation{},
		&trdomain.Transfer{},
		&trdomain.TransferLine{},
		&thdomain.LowStockSignal{},
	); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	// Redis for the availability read cache, optional
	var redisClient *redis.Client
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	if redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Logger.Warn().Err(err).Str("addr", redisAddr).Msg("Redis unavailable, availability cache disabled")
			redisClient = nil
		} else {
			logger.Logger.Info().Str("addr", redisAddr).Msg("Redis connected")
		}
		cancel()
	}

	// Kafka publisher, optional
	var publisher *kafka.Publisher
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	if getEnv("KAFKA_ENABLED", "true") == "true" {
		publisher, err = kafka.NewPublisher(brokers)
		if err != nil {
			logger.Logger.Warn().Err(err).Strs("brokers", brokers).Msg("Kafka unavailable, event publishing disabled")
			publisher = nil
		} else {
			defer publisher.Close()
			logger.Logger.Info().Strs("brokers", brokers).Msg("Kafka publisher connected")
		}
	}

	// Initialize application with Wire DI
	appConfig := app.Config{
		SweepInterval:  getDurationEnv("SWEEP_INTERVAL", time.Minute),
		ReservationTTL: getDurationEnv("RESERVATION_TTL", 30*time.Minute),
		LockTimeout:    getDurationEnv("LOCK_TIMEOUT", 2*time.Second),
	}
	application, err := app.InitializeApplication(db, redisClient, publisher, appConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize application")
	}

	logger.Logger.Info().Msg("Stock ledger application initialized")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Reservation expiry sweeper
	go application.Sweeper.Run(ctx)

	// Order lifecycle consumer, optional
	if publisher != nil {
		consumer, err := kafka.NewOrderConsumer(brokers, getEnv("KAFKA_GROUP_ID", "stockledger"), application.Manager)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Failed to start order consumer")
		} else {
			defer consumer.Close()
			go consumer.Start(ctx)
			logger.Logger.Info().Msg("Order lifecycle consumer started")
		}
	}

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8084")
	server := startHTTPServer(application, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

func startHTTPServer(application *app.Application, db *sql.DB, port string) *http.Server {
	// Setup router
	router := mux.NewRouter()

	// Register middlewares
	middlewareConfig := httpdelivery.DefaultMiddlewareConfig()
	httpdelivery.RegisterMiddlewares(router, middlewareConfig)

	// Register routes
	application.Handler.RegisterRoutes(router)

	// Health check endpoint
	application.Handler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	httpdelivery.RegisterSwaggerDocs(router, httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// CORS middleware
	corsHandler := httpdelivery.SetupCORS(middlewareConfig)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: corsHandler(router),
	}

	go func() {
		logger.Logger.Info().
			Str("port", port).
			Str("metrics_endpoint", "/metrics").
			Str("swagger_endpoint", "/swagger/").
			Msg("HTTP server started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	return server
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Logger.Warn().
			Str("key", key).
			Str("value", value).
			Dur("default", defaultValue).
			Msg("Invalid duration value, using default")
		return defaultValue
	}
	return d
}
