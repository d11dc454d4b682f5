package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Epin-platforms/nadal-server/brackets"
	"github.com/Epin-platforms/nadal-server/config"
	"github.com/Epin-platforms/nadal-server/db"
	"github.com/Epin-platforms/nadal-server/handlers"
	"github.com/Epin-platforms/nadal-server/locks"
	"github.com/Epin-platforms/nadal-server/push"
	"github.com/Epin-platforms/nadal-server/repositories"
	api "github.com/Epin-platforms/nadal-server/routes"
	"github.com/Epin-platforms/nadal-server/services"
	"github.com/Epin-platforms/nadal-server/storage"
)

const requestTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Правила KDK
	rules, err := brackets.LoadRuleset(cfg.SinglesRulesPath, cfg.DoublesRulesPath)
	if err != nil {
		logger.Error("failed to load KDK rules", slog.Any("error", err))
		os.Exit(1)
	}
	seeder := brackets.NewSeeder(rules, rand.New(rand.NewSource(time.Now().UnixNano())))

	// Блокировка турниров: Redis, если настроен
	var locker locks.Locker = locks.NoopLocker{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = locks.NewRedisLocker(redisClient, cfg.LockTTL)
		logger.Info("redis tournament locks enabled", slog.Duration("ttl", cfg.LockTTL))
	} else {
		logger.Warn("REDIS_ADDR is not set, tournament locks are process-local only")
	}

	// Push: без ключей Firebase пуши только пишутся в лог
	var sender push.Sender
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			logger.Error("failed to initialize Firebase messaging", slog.Any("error", err))
			os.Exit(1)
		}
		sender = fcm
		logger.Info("Firebase messaging initialized")
	} else {
		logger.Warn("FIREBASE_CREDENTIALS_FILE is not set, push notifications are logged only")
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage is not configured, image uploads are disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	transactor := repositories.NewPostgresTransactor(dbConn, logger)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	imageRepo := repositories.NewPostgresImageRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	notificationCfg := services.DefaultNotificationConfig()
	notificationCfg.RetentionDays = cfg.NotificationRetentionDays
	notificationService := services.NewNotificationService(
		tournamentRepo,
		participantRepo,
		userRepo,
		notificationRepo,
		sender,
		wsHub,
		notificationCfg,
		logger,
	)
	gameService := services.NewGameService(
		transactor,
		tournamentRepo,
		participantRepo,
		matchRepo,
		userRepo,
		ratingRepo,
		rules,
		seeder,
		locker,
		wsHub,
		notificationService,
		logger,
	)
	imageService := services.NewImageService(imageRepo, uploader, logger)
	logger.Info("Services initialized")

	// Очистка старых уведомлений
	go func() {
		ticker := time.NewTicker(cfg.RetentionInterval)
		defer ticker.Stop()
		logger.Info("notification retention job started", slog.Duration("interval", cfg.RetentionInterval))

		purge := func() {
			n, err := notificationService.PurgeExpired(ctx)
			if err != nil {
				logger.Error("retention: purge failed", slog.Any("error", err))
				return
			}
			logger.Info("retention: expired notifications removed", slog.Int64("count", n))
		}
		purge()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purge()
			}
		}
	}()

	// Инициализация обработчиков HTTP
	gameHandler := handlers.NewGameHandler(gameService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	uploadHandler := handlers.NewUploadHandler(imageService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			JWTSecret:      []byte(cfg.JWTSecretKey),
			AllowedOrigins: cfg.CORSAllowedOrigins,
			RequestTimeout: requestTimeout,
		},
		gameHandler,
		notificationHandler,
		uploadHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout не задаём: он оборвал бы websocket соединения.
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	// Останавливаем hub и фоновые задачи
	stop()
	logger.Info("application exited")
}
