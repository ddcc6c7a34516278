package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/batchplant/plant-api/config"
	"github.com/batchplant/plant-api/controllers"
	"github.com/batchplant/plant-api/middleware"
	"github.com/batchplant/plant-api/models"
	"github.com/batchplant/plant-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting batching plant API server", zap.String("env", cfg.GoEnv))

	// Connect to database
	db, err := config.ConnectDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := connectNotifiers(ctx, cfg, logger)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("Failed to close order event notifiers", zap.Error(err))
		}
	}()

	orders := services.NewOrderService(db,
		services.WithLogger(logger),
		services.WithNotifier(notifier),
		services.WithNotifyTimeout(cfg.NotifyTimeout),
		services.WithTaskGuard(cfg.OrderTaskGuard),
	)

	var auth gin.HandlerFunc
	if cfg.AuthEnabled() {
		auth, err = middleware.EnsureValidToken(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to set up JWT validation", zap.Error(err))
		}
	} else {
		logger.Warn("AUTH0_DOMAIN is not set, the API is running without authentication")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, db, logger, orders, auth)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server is running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

// connectNotifiers builds the order event fan-out from the configured brokers.
// A broker that cannot be reached is logged and skipped.
func connectNotifiers(ctx context.Context, cfg *config.Config, logger *zap.Logger) services.Notifier {
	var notifiers []services.Notifier

	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.NotifyTimeout)
		redisNotifier, err := services.NewRedisNotifier(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, order events will not reach site dashboards", zap.Error(err))
		} else {
			logger.Info("Publishing order events to redis", zap.String("addr", cfg.RedisAddr))
			notifiers = append(notifiers, redisNotifier)
		}
	}

	if cfg.AMQPURL != "" {
		amqpNotifier, err := services.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, order events will not be queued", zap.Error(err))
		} else {
			logger.Info("Publishing order events to rabbitmq", zap.String("queue", cfg.AMQPQueue))
			notifiers = append(notifiers, amqpNotifier)
		}
	}

	if cfg.AWSS3Bucket != "" {
		archiver, err := services.NewS3Archiver(ctx, services.S3ArchiveConfig{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AWSS3Bucket,
			Prefix:          cfg.AWSS3Prefix,
			Endpoint:        cfg.AWSS3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			logger.Warn("S3 archive unavailable, order events will not be archived", zap.Error(err))
		} else {
			logger.Info("Archiving order events to S3", zap.String("bucket", cfg.AWSS3Bucket))
			notifiers = append(notifiers, archiver)
		}
	}

	return services.NewMultiNotifier(notifiers...)
}

// setupRouter wires middleware and routes. A nil auth handler leaves the API open
// and disables role checks.
func setupRouter(cfg *config.Config, db *gorm.DB, logger *zap.Logger, orders *services.OrderService, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(logger), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// writeAccess returns the handlers gating a write route: the allowed roles,
	// plus the configured write scope if any
	writeAccess := func(handler gin.HandlerFunc, roles ...string) []gin.HandlerFunc {
		if auth == nil {
			return []gin.HandlerFunc{handler}
		}
		handlers := []gin.HandlerFunc{middleware.RequireRole(roles...)}
		if cfg.Auth0WriteScope != "" {
			handlers = append(handlers, middleware.RequireScope(cfg.Auth0WriteScope))
		}
		return append(handlers, handler)
	}

	orderController := controllers.NewOrderController(orders, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus(db))

		protected := v1.Group("")
		if auth != nil {
			protected.Use(auth)
		}

		orderRoutes := protected.Group("/orders")
		{
			orderRoutes.GET("", orderController.ListOrders)
			orderRoutes.GET("/statistics", orderController.GetStatistics)
			orderRoutes.GET("/:id", orderController.GetOrder)
			orderRoutes.GET("/:id/history", orderController.OrderHistory)

			orderRoutes.POST("", writeAccess(orderController.CreateOrder, middleware.RoleAdmin, middleware.RoleOperator)...)
			orderRoutes.PUT("/:id", writeAccess(orderController.UpdateOrder, middleware.RoleAdmin, middleware.RoleOperator)...)
			orderRoutes.PATCH("/:id/status", writeAccess(orderController.ChangeStatus, middleware.RoleAdmin, middleware.RoleOperator)...)
			orderRoutes.DELETE("/:id", writeAccess(orderController.DeleteOrder, middleware.RoleAdmin)...)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Batching plant API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the underlying SQL database to check connection
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		// Ping the database to verify connection
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
