package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"realtime_chat_service/internal/chat/api/handlers"
	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/internal/chat/router"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	token.SetSecret(cfg.JWTSecret)

	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Mongo.User, cfg.Mongo.Password, cfg.Mongo.Host, cfg.Mongo.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.Mongo.RetryCount,
			RetryInterval: time.Duration(cfg.Mongo.RetryInterval),
		},
		cfg.Mongo.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect minio err : %v", err))
	}

	userRepo := repository.NewMongoUserRepository(mongo.Database)
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	if err := convRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("ensure conversation indexes err : %v", err))
	}
	if err := msgRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("ensure message indexes err : %v", err))
	}

	media := repository.NewMinioMediaStore(minioClient)
	bridge := repository.NewRedisPubSub(redisClient)
	blacklist := token.NewBlacklist(redisClient)

	hub := app.NewHub(bridge)
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Log.Errorf("event bridge stopped", err)
		}
	}()

	convUC := app.NewConversationUseCase(userRepo, convRepo, msgRepo)
	msgUC := app.NewMessageUseCase(convRepo, msgRepo, media, hub)
	wsHandler := app.NewWebsocketHandler(hub, convUC, msgUC, userRepo)

	r := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		handlers.NewConversationHandler(convUC, media),
		handlers.NewMessageHandler(msgUC, media),
		wsHandler,
		blacklist,
	)

	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
