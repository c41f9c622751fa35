package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"friendbook/config"
	"friendbook/database"
	"friendbook/handlers"
	"friendbook/mailer"
	"friendbook/media"
	"friendbook/middleware"
	"friendbook/routes"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	logger.Info("starting friendbook", zap.String("mode", gin.Mode()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := database.Connect(ctx, cfg.MongoURI, logger)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	db := client.Database(cfg.MongoDatabase)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}
	logger.Info("MongoDB connected", zap.String("database", cfg.MongoDatabase))

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise media storage", zap.String("backend", cfg.MediaBackend), zap.Error(err))
	}
	mediaService := media.NewService(storage, logger)
	if err := mediaService.SeedDefaults(ctx); err != nil {
		logger.Fatal("failed to seed default media", zap.Error(err))
	}

	var sender mailer.Sender
	if cfg.EmailUser != "" {
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass, cfg.EmailFrom)
	} else {
		logger.Warn("EMAIL_USER not set, OTP emails will only be logged")
		sender = mailer.NewLogSender(logger)
	}

	var rdb *redis.Client
	var authLimiter, otpLimiter middleware.Limiter
	if cfg.RedisAddr != "" {
		rdb, err = middleware.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		authLimiter = middleware.NewRedisRateLimiter(rdb, "auth", cfg.RateLimitPerMinute, time.Minute)
		otpLimiter = middleware.NewRedisRateLimiter(rdb, "otp", cfg.OTPMaxAttempts, database.PendingTTL)
	} else {
		authLimiter = middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		otpLimiter = middleware.NewIPRateLimiter(cfg.OTPMaxAttempts, database.PendingTTL)
	}

	h := handlers.New(handlers.Deps{
		Users:                database.NewUserStore(db),
		Pending:              database.NewPendingStore(db),
		Posts:                database.NewPostStore(db),
		Media:                mediaService,
		Mailer:               sender,
		OTPLimiter:           otpLimiter,
		Logger:               logger,
		JWTSecret:            cfg.JWTSecret,
		TokenTTL:             cfg.TokenTTL,
		LoginRequireVerified: cfg.LoginRequireVerified,
	})

	var origins []string
	if !cfg.AllowAllOrigins() {
		origins = cfg.CORSOrigins
	}
	router := routes.SetupRouter(h, routes.Options{
		JWTSecret:    cfg.JWTSecret,
		AuthLimiter:  authLimiter,
		AllowOrigins: origins,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	if err := database.Disconnect(client); err != nil {
		logger.Error("MongoDB disconnect failed", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Redis close failed", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsRelease() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func newStorage(ctx context.Context, cfg *config.Config) (media.Storage, error) {
	if cfg.MediaBackend == config.MediaBackendMinio {
		return media.NewMinioStorage(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return media.NewDiskStorage(cfg.UploadDir)
}
