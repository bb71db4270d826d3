package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"blogpulse/internal/cache"
	"blogpulse/internal/config"
	"blogpulse/internal/database"
	"blogpulse/internal/handler"
	"blogpulse/internal/queue"
	"blogpulse/internal/redis"
	"blogpulse/internal/repository"
	"blogpulse/internal/service"
	"blogpulse/internal/worker"
)

// Run wires the application together and serves HTTP until interrupted.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	log.Println("Connected to Redis successfully")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)

	// Queue and cache on the shared Redis connection
	publisher := queue.NewPublisher(redisClient.Client)
	consumer := queue.NewConsumer(redisClient.Client)
	countCache := cache.NewCountCache(redisClient.Client)

	// Services
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthService(refreshTokenRepo, cfg)
	commentService := service.NewCommentService(commentRepo, countCache, publisher)
	quotaService := service.NewQuotaService(quotaRepo, redemptionRepo, db, publisher, cfg.ChatDailyLimit, cfg.PromoCodeSecret)
	deviceService := service.NewDeviceService(deviceTokenRepo)

	var chatService *service.ChatService
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := service.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		chatService = service.NewChatService(quotaService, geminiClient)
	} else {
		log.Println("[Server] GEMINI_API_KEY not set, chat runs without an upstream model")
		chatService = service.NewChatService(quotaService, nil)
	}

	// Media is optional: without R2 credentials the avatar endpoint is
	// simply not mounted.
	var mediaHandler *handler.MediaHandler
	if cfg.R2AccountID != "" {
		mediaService, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create media service: %w", err)
		}
		mediaHandler = handler.NewMediaHandler(mediaService, userService)
	} else {
		log.Println("[Server] R2 not configured, avatar uploads disabled")
	}

	// Push senders for the engagement worker. Both are optional.
	var fcmSender worker.FCMSender
	if cfg.FCMProjectID != "" && cfg.FCMClientEmail != "" && cfg.FCMPrivateKey != "" {
		fcmClient, err := service.NewFCMClient(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey)
		if err != nil {
			log.Printf("[Server] FCM init failed, continuing without it: %v", err)
		} else {
			fcmSender = fcmClient
		}
	}
	expoClient := service.NewExpoPushClient()

	workerHandler := worker.NewHandler(deviceTokenRepo, expoClient, fcmSender, cfg.OwnerEmail)
	manager := worker.NewManager(consumer, workerHandler, worker.ManagerConfig{
		WorkerCount: cfg.WorkerCount,
	})
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer manager.Stop()

	router := NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userService, authService),
		CommentHandler: handler.NewCommentHandler(commentService),
		ChatHandler:    handler.NewChatHandler(chatService, quotaService),
		DeviceHandler:  handler.NewDeviceHandler(deviceService),
		MediaHandler:   mediaHandler,
		JWTSecret:      cfg.JWTSecret,
	})

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
