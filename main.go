package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-registration/internal/auth"
	"ms-registration/internal/config"
	"ms-registration/internal/gateway"
	"ms-registration/internal/kafka"
	"ms-registration/internal/logger"
	"ms-registration/internal/notify"
	"ms-registration/internal/order"
	orderdb "ms-registration/internal/order/db"
	"ms-registration/internal/order/order_api"
	rediswrap "ms-registration/internal/order/redis"
	"ms-registration/internal/pricing"
	tickets "ms-registration/internal/tickets"
	ticketdb "ms-registration/internal/tickets/db"
	"ms-registration/internal/tickets/ticket_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Registration Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers)
		logger.Info("KAFKA", "Kafka producer initialized successfully")

		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.PaymentConfirmed,
			cfg.Kafka.Topics.TicketCheckedIn,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		logger.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	whatsappClient := notify.NewWhatsAppClient(cfg.WhatsApp)
	if whatsappClient.Enabled() {
		logger.Info("NOTIFY", "WhatsApp notifications enabled")
	} else {
		logger.Warn("NOTIFY", "WhatsApp credentials missing, notifications disabled")
	}
	notifier := notify.NewService(kafkaProducer, whatsappClient, cfg, logger)

	pricingEngine := pricing.NewEngine(cfg.Pricing)
	gatewayClient := gateway.NewClient(cfg.Gateway, logger)

	ticketService := tickets.NewTicketService(
		&ticketdb.DB{Bun: bunDB},
		&orderdb.DB{Bun: bunDB},
		notifier,
		logger,
	)

	orderService := order.NewOrderService(
		&orderdb.DB{Bun: bunDB},
		gatewayClient,
		ticketService,
		rediswrap.NewRedis(redisClient, cfg.Redis.ConfirmLockTTL),
		notifier,
		pricingEngine,
		cfg,
		logger,
	)

	handler := &order_api.Handler{
		OrderService: orderService,
		Logger:       logger,
	}

	ticketHandler := &ticket_api.Handler{
		TicketService: ticketService,
		Logger:        logger,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Route("/api/registration", func(r chi.Router) {
		r.Post("/orders", handler.CreateOrder)
		r.Post("/orders/manual", handler.CreateManualOrder)
		r.Post("/payments/confirm", handler.ConfirmPayment)
		r.Post("/orders/{orderId}/attest", handler.AttestPayment)
		logger.Info("ROUTER", "Public registration endpoints registered under /api/registration")

		// --- Staff Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))
			r.Use(auth.RequireStaff(cfg.Auth.StaffRoles))
			logger.Info("AUTH", "OIDC middleware applied to staff API routes")

			r.Post("/orders/{orderId}/verify", handler.VerifyPayment)
			r.Get("/orders/{orderId}", handler.GetOrder)
			r.Post("/scan", ticketHandler.Scan)
			r.Get("/tickets/{code}", ticketHandler.GetTicket)
			logger.Info("ROUTER", "Staff endpoints registered under /api/registration")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Registration Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("KAFKA", fmt.Sprintf("Failed to close Kafka producer: %v", err))
		}
	}

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Registration Service shutdown complete")
	}
}
