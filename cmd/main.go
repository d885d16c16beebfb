package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"role-service/internal/config"
	"role-service/internal/events"
	"role-service/internal/handlers"
	"role-service/internal/metrics"
	"role-service/internal/middleware"
	"role-service/internal/models"
	"role-service/internal/providers"
	"role-service/internal/repository"
	"role-service/internal/scheduler"
	"role-service/internal/services"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}

	if err := autoMigrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	redisClient := initRedis(cfg, logger)

	// Repositories
	roleStateRepo := repository.NewRoleStateRepository(db, cfg.RoleSwitch.MaxDailySwitches)
	profileRepo := repository.NewProfileRepository(db, redisClient, cfg.Redis.FlagsCacheTTL, logger)
	auditRepo := repository.NewAuditRepository(db)

	// NATS publisher is optional; the dispatcher degrades to DB-only side
	// effects without it.
	var publisher *events.Publisher
	if cfg.Notification.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.Notification.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Events publisher unavailable, role events won't be published")
		}
	}

	notifier := providers.NewNotificationProvider(cfg.Notification.ServiceURL, cfg.Notification.APIKey)

	// Services
	validator := services.NewPrerequisiteValidator(cfg.RoleSwitch.CompletionThreshold)
	limiter := services.NewSwitchRateLimiter(roleStateRepo, cfg.GetCooldownDuration(), cfg.RoleSwitch.MaxDailySwitches)
	var dispatcher services.SideEffectDispatcher = services.NewDispatcher(auditRepo, profileRepo, notifier, publisherOrNil(publisher), logger)
	roleSwitchService := services.NewRoleSwitchService(roleStateRepo, profileRepo, validator, limiter, dispatcher, logger)

	// Handlers
	healthHandler := handlers.NewHealthHandler(db)
	roleHandler := handlers.NewRoleHandler(roleSwitchService, cfg.Security.JWTSecret)

	// Retention scheduler
	cleanupScheduler := scheduler.NewCleanupScheduler(auditRepo, cfg.Retention, logger)
	if err := cleanupScheduler.Start(); err != nil {
		logger.WithError(err).Warn("Cleanup scheduler failed to start")
	}

	startDBMetrics(db, logger)

	router := setupRouter(cfg, logger, healthHandler, roleHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting role-service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cleanupScheduler.Stop()
	if publisher != nil {
		publisher.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// publisherOrNil keeps a typed-nil *events.Publisher out of the dispatcher's
// interface field.
func publisherOrNil(p *events.Publisher) services.RoleEventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func setupRouter(cfg *config.Config, logger *logrus.Logger, healthHandler *handlers.HealthHandler, roleHandler *handlers.RoleHandler) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SetupCORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(logger))
	router.Use(metrics.Middleware())

	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.APIResponse{
			Success: false,
			Message: "Méthode non autorisée",
		})
	})

	// Health endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		roles := v1.Group("/roles")
		{
			// The switch handler authenticates itself after validating
			// the target role, so it skips the auth middleware.
			roles.POST("/switch", roleHandler.SwitchRole)

			authed := roles.Group("")
			authed.Use(middleware.AuthRequired(cfg.Security.JWTSecret))
			{
				authed.GET("/me", roleHandler.GetStatus)
				authed.GET("/history", roleHandler.GetHistory)
			}
		}
	}

	return router
}

func autoMigrate(db *gorm.DB, logger *logrus.Logger) error {
	logger.Info("Starting database migration...")

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		logger.WithError(err).Warn("Failed to create uuid-ossp extension")
	}

	// identity_profiles is owned and migrated by the profile subsystem.
	modelsToMigrate := []interface{}{
		&models.UserRoleState{},
		&models.SecurityAuditLog{},
		&models.Notification{},
	}

	for _, model := range modelsToMigrate {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	logger.Info("Database migration completed successfully")
	return nil
}

func initDatabase(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return db, nil
}

func initRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, verification-flag caching off")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, verification-flag caching off")
		return nil
	}

	logger.WithField("addr", cfg.Redis.Addr).Info("Connected to Redis")
	return client
}

func startDBMetrics(db *gorm.DB, logger *logrus.Logger) {
	dbConnectionsOpen := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketplace",
		Subsystem: "roles",
		Name:      "db_connections_open",
		Help:      "Number of open database connections",
	})
	dbConnectionsInUse := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketplace",
		Subsystem: "roles",
		Name:      "db_connections_in_use",
		Help:      "Number of database connections currently in use",
	})
	dbConnectionsIdle := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketplace",
		Subsystem: "roles",
		Name:      "db_connections_idle",
		Help:      "Number of idle database connections",
	})

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			sqlDB, err := db.DB()
			if err != nil {
				logger.WithError(err).Warn("Failed to get database instance for metrics")
				continue
			}

			stats := sqlDB.Stats()
			dbConnectionsOpen.Set(float64(stats.OpenConnections))
			dbConnectionsInUse.Set(float64(stats.InUse))
			dbConnectionsIdle.Set(float64(stats.Idle))
		}
	}()
}
