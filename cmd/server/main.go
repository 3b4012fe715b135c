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
	"github.com/go-demo/watchroom/internal/config"
	"github.com/go-demo/watchroom/internal/dto/response"
	"github.com/go-demo/watchroom/internal/handler"
	"github.com/go-demo/watchroom/internal/middleware"
	"github.com/go-demo/watchroom/internal/pkg/cache"
	"github.com/go-demo/watchroom/internal/pkg/catalog"
	"github.com/go-demo/watchroom/internal/pkg/database"
	"github.com/go-demo/watchroom/internal/pkg/metrics"
	"github.com/go-demo/watchroom/internal/pkg/utils"
	"github.com/go-demo/watchroom/internal/realtime"
	"github.com/go-demo/watchroom/internal/repository"
	"github.com/go-demo/watchroom/internal/service"
	"github.com/go-demo/watchroom/internal/ws"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

// @title           Watch Room API
// @version         1.0
// @description     Go 共同觀影房間 API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(&cfg.Log)
	defer logger.Sync()

	logger.Info("Starting watch room server",
		zap.String("mode", cfg.Server.Mode),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("feed", cfg.Feed.Driver),
	)

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize stores
	var (
		db       *sqlx.DB
		rooms    service.RoomStore
		messages service.MessageStore
		events   service.EventStore
	)
	switch cfg.Store.Driver {
	case "postgres":
		db, err = database.NewPostgres(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db, logger)

		if cfg.Database.AutoMigrate {
			applied, err := database.Migrate(ctx, db)
			if err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
			logger.Info("Migrations applied", zap.Strings("files", applied))
		}

		rooms = repository.NewRoomRepository(db)
		messages = repository.NewMessageRepository(db)
		events = repository.NewEventRepository(db)
	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		store := repository.NewMemoryStore()
		rooms, messages, events = store, store, store
	}

	// Initialize Redis
	var redisClient *redis.Client
	if cfg.Feed.Driver == "redis" {
		redisClient, err = cache.NewRedis(ctx, &cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer cache.Close(redisClient, logger)
	}

	// Initialize change feed
	var feed realtime.Feed
	if redisClient != nil {
		feed = realtime.NewRedisFeed(redisClient, logger)
	} else {
		feed = realtime.NewLocalFeed()
	}

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Initialize services
	presence := service.PresencePolicy{TTL: cfg.Presence.TTL}
	roomService := service.NewRoomService(rooms, messages, feed, service.RoomOptions{
		CreateTimeout:   cfg.Room.CreateTimeout,
		CodeAttempts:    cfg.Room.CodeAttempts,
		MaxParticipants: cfg.Room.MaxParticipants,
		MessageWindow:   cfg.Room.MessageWindow,
		MaxWindow:       cfg.Room.MaxWindow,
	}, presence, logger)
	eventService := service.NewEventService(events, roomService, feed, logger)

	if cfg.Catalog.Enabled() {
		var lookup catalog.Lookup = catalog.NewClient(&cfg.Catalog, logger)
		if redisClient != nil {
			lookup = catalog.NewCachedLookup(lookup, cache.NewCache(redisClient, logger), cfg.Catalog.CacheTTL, logger)
		}
		roomService.WithCatalog(lookup)
		eventService.WithCatalog(lookup)
	}

	sweeper := service.NewPresenceSweeper(rooms, feed, presence, cfg.Presence.SweepInterval, logger)
	go sweeper.Run(ctx)

	// Message rate limiting is shared by HTTP and WebSocket senders
	var limiter middleware.RateLimiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient, cfg.RateLimit.MessagesPerMinute, time.Minute)
	} else {
		limiter = middleware.PerMinute(cfg.RateLimit.MessagesPerMinute)
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	// Initialize handlers
	roomHandler := handler.NewRoomHandler(roomService)
	messageHandler := handler.NewMessageHandler(roomService)
	eventHandler := handler.NewEventHandler(eventService)
	meHandler := handler.NewMeHandler()
	wsHandler := ws.NewHandler(hub, roomService, jwtManager, limiter, ws.Options{
		MessageLimit:      cfg.Room.MessageWindow,
		HeartbeatInterval: cfg.Presence.HeartbeatInterval,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}, logger)

	router := setupRouter(
		logger,
		cfg.Server.AllowedOrigins,
		jwtManager,
		limiter,
		healthCheck(db, redisClient),
		roomHandler,
		messageHandler,
		eventHandler,
		meHandler,
		wsHandler,
	)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server is running",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stops the sweeper, the hub and every open session
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func initLogger(cfg *config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}
	output := "stdout"
	if cfg.OutputPath != "" {
		output = cfg.OutputPath
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}

// healthCheck reports the backing services; either may be nil when the
// in-memory store or local feed is configured.
func healthCheck(db *sqlx.DB, redisClient *redis.Client) gin.HandlerFunc {
	started := time.Now()

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		services := make(map[string]string)
		if db != nil {
			services["database"] = "up"
			if err := database.Ping(ctx, db); err != nil {
				services["database"] = "down"
				status = "degraded"
			}
		}
		if redisClient != nil {
			services["redis"] = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				services["redis"] = "down"
				status = "degraded"
			}
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, response.HealthResponse{
			Status:    status,
			Version:   version,
			Uptime:    time.Since(started).Round(time.Second).String(),
			Timestamp: time.Now().Format(time.RFC3339),
			Services:  services,
		})
	}
}

func setupRouter(
	logger *zap.Logger,
	allowedOrigins []string,
	jwtManager *utils.JWTManager,
	limiter middleware.RateLimiter,
	health gin.HandlerFunc,
	roomHandler *handler.RoomHandler,
	messageHandler *handler.MessageHandler,
	eventHandler *handler.EventHandler,
	meHandler *handler.MeHandler,
	wsHandler *ws.Handler,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(metrics.HTTPMetricsMiddleware())

	router.GET("/health", health)
	router.GET("/metrics", metrics.Handler())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// WebSocket endpoint; the token may travel as a query parameter
	router.GET("/ws/rooms/:id", wsHandler.ServeRoom)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(jwtManager))
	{
		v1.GET("/me", meHandler.Get)

		rooms := v1.Group("/rooms")
		{
			rooms.GET("", roomHandler.ListPublic)
			rooms.POST("", roomHandler.Create)
			rooms.GET("/code/:code", roomHandler.GetByCode)
			rooms.POST("/code/:code/join", roomHandler.JoinByCode)
			rooms.GET("/:id", roomHandler.GetByID)
			rooms.POST("/:id/join", roomHandler.Join)
			rooms.POST("/:id/leave", roomHandler.Leave)
			rooms.POST("/:id/heartbeat", roomHandler.Heartbeat)
			rooms.GET("/:id/participants", roomHandler.ListParticipants)
			rooms.GET("/:id/participants/:user_id", roomHandler.GetParticipant)
			rooms.PUT("/:id/playback", roomHandler.UpdatePlayback)

			// Room messages
			rooms.GET("/:id/messages", messageHandler.GetMessages)
			rooms.POST("/:id/messages", middleware.MessageRateLimit(limiter), messageHandler.SendMessage)
			rooms.POST("/:id/reactions", middleware.MessageRateLimit(limiter), messageHandler.SendReaction)
		}

		events := v1.Group("/events")
		{
			events.GET("", eventHandler.ListUpcoming)
			events.POST("", eventHandler.Create)
			events.GET("/stream", eventHandler.Stream)
			events.POST("/:id/start", eventHandler.Start)
		}

		v1.GET("/ws/stats", wsHandler.GetStats)
	}

	return router
}
