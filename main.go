package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-backend/internal/auth"
	"chat-backend/internal/avatar"
	"chat-backend/internal/config"
	"chat-backend/internal/db"
	"chat-backend/internal/handlers"
	"chat-backend/internal/hub"
	"chat-backend/internal/logging"
	"chat-backend/internal/middleware"
	"chat-backend/internal/moderation"
	"chat-backend/internal/observability"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/registry"
	"chat-backend/internal/repositories"
	"chat-backend/internal/service"
	"chat-backend/internal/storage"
	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chat-backend"})
	log := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracerShutdown func(context.Context) error
	if cfg.Telemetry.Enabled {
		tracerShutdown, err = telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up tracing")
		}
	}

	database, err := db.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	userRepo := repositories.NewUserRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	abuseRepo := repositories.NewAbuseLogRepo(database)

	authService := auth.NewService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "chat-backend", cfg.Telemetry.Environment)

	store, localAvatarDir, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up avatar storage")
	}
	avatars := avatar.NewProcessor(cfg.Storage.AvatarSize)

	gate := moderation.NewGate(buildClassifier(cfg.Moderation), cfg.Moderation.Timeout, cfg.Moderation.FailClosed, abuseRepo, audit)

	reg := registry.New(authService)
	h := hub.NewHub(hub.Config{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
	})
	chatService := service.NewChatService(reg, h, userRepo, chatRepo, messageRepo, gate, cfg.Database.QueryTimeout)
	wsHandler := ws.NewHandler(h, chatService)

	authHandler := handlers.NewAuthHandler(userRepo, authService, audit)
	userHandler := handlers.NewUserHandler(userRepo, store, avatars, cfg.Storage.AvatarMaxBytes, audit)
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, userRepo)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware("chat-backend"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)
	if localAvatarDir != "" {
		router.Static("/static/avatars", localAvatarDir)
	}

	api := router.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(authService))
	authed.GET("/users/me", userHandler.Me)
	authed.GET("/users", userHandler.ListUsers)
	authed.PUT("/users/profile", userHandler.UpdateProfile)
	authed.POST("/users/profile/avatar", userHandler.UploadAvatar)
	authed.DELETE("/users/profile/avatar", userHandler.DeleteAvatar)
	authed.POST("/chats", chatHandler.CreateChat)
	authed.GET("/chats", chatHandler.ListChats)
	authed.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)

	handlers.RegisterDebugRoutes(router, audit, cfg.Telemetry.Environment == "dev")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info().
			Str("addr", addr).
			Str("storage", cfg.Storage.Backend).
			Str("moderation", cfg.Moderation.Mode).
			Str("events", rabbitmq.PublisherMode(publisher)).
			Msg("chat backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("tracer shutdown failed")
		}
	}
}

// buildStorage returns the configured avatar store. The second value is the
// directory to serve statically, empty unless the local backend is active.
func buildStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, string, error) {
	switch cfg.Backend {
	case "s3":
		store, err := storage.NewS3(ctx, storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		return store, "", err
	case "", "local":
		store, err := storage.NewLocal(cfg.LocalDir, cfg.LocalBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildClassifier(cfg config.ModerationConfig) moderation.Classifier {
	if cfg.Mode == "http" {
		return moderation.NewHTTPClassifier(cfg.URL)
	}
	return moderation.NewTermClassifier(nil)
}
