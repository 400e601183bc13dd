package main

import (
	"context"
	"log"

	"tomodachi/config"
	"tomodachi/internal/handler"
	"tomodachi/internal/redis"
	"tomodachi/internal/repository"
	"tomodachi/internal/server"
	"tomodachi/internal/services"
	"tomodachi/internal/storage"
	"tomodachi/internal/viewmodel"
	"tomodachi/internal/websocket"
	"tomodachi/pkg/database"
	"tomodachi/pkg/logger"

	"tomodachi/internal/events"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.ApplyMigrations(db, "migrations"); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisClient := redis.GetClient()

	publisher := redis.NewPublisher(redisClient)
	subscriber := redis.NewSubscriber(redisClient)
	presenceStore := redis.NewPresenceStore(redisClient, cfg.PresenceTTL)
	cache := redis.NewCacheStore(redisClient, redis.DefaultCacheConfig())
	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())

	bus := events.NewBus(publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var s3Client *storage.Client
	if cfg.S3Bucket != "" {
		s3Client, err = storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("failed to configure s3 storage: %v", err)
		}
	} else {
		l.Warnf("S3_BUCKET not set, avatar uploads disabled")
	}

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	authService := services.NewAuthService(userRepo, bus, l, cfg)
	userService := services.NewUserService(userRepo, cache, bus, l)
	chatService := services.NewChatService(chatRepo, userRepo, bus, l)
	messageService := services.NewMessageService(messageRepo, chatRepo, bus, l)
	presenceService := services.NewPresenceService(userRepo, presenceStore, cache, bus, l)
	avatarService := services.NewAvatarService(userService, userRepo, s3Client, cfg.AvatarMaxSize, l)

	// Search and profile reads rank on the mirror's presence, not the rows'.
	directory := viewmodel.NewPresenceDirectory(userRepo, presenceService)
	feeds := viewmodel.NewFeeds(chatService, userService, messageService, subscriber, l)
	chatWriter := viewmodel.NewServiceWriter(chatService, messageService)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	bridge := websocket.NewRedisBridge(subscriber, hub)
	go func() {
		if err := bridge.Run(ctx, []string{"channel:*"}); err != nil && ctx.Err() == nil {
			l.Errorf("redis bridge stopped: %v", err)
		}
	}()

	authorizer := websocket.NewChannelAuthorizer(chatRepo)
	wsHandler := websocket.NewHandler(authService, hub, authorizer, presenceService, feeds, chatWriter, directory, cfg.HeartbeatInterval, l)

	handlers := &server.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService, authService, avatarService, directory, presenceService),
		Chat:    handler.NewChatHandler(chatService),
		Message: handler.NewMessageHandler(messageService),
		Upload:  handler.NewUploadHandler(avatarService),
		WS:      wsHandler,
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, authService, limiter, db)

	if err := srv.Start(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
