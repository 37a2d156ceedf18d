package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/cache"
	"github.com/kmalinin/shoply/internal/config"
	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/handlers"
	"github.com/kmalinin/shoply/internal/logging"
	"github.com/kmalinin/shoply/internal/mailer"
	loggingmw "github.com/kmalinin/shoply/internal/middleware/logging"
	"github.com/kmalinin/shoply/internal/payments"
	"github.com/kmalinin/shoply/internal/search"
	httpserver "github.com/kmalinin/shoply/internal/transport/http"
	"github.com/kmalinin/shoply/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}

	var codes cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis error: %v", err)
		}
		defer redisStore.Close()
		codes = redisStore
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory code store")
		codes = cache.NewMemoryStore()
	}

	var producer events.Publisher = events.Nop{}
	if cfg.KafkaAddress != "" {
		producer = events.NewProducer(cfg.KafkaAddress)
	} else {
		logger.Warn("KAFKA_ADDRESS not set, domain events disabled")
	}

	var productIndex search.ProductIndex
	if cfg.ESURL != "" {
		esClient, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("elasticsearch error: %v", err)
		}
		productIndex = search.NewESProductIndex(esClient, cfg.ESIndex)
	} else {
		logger.Warn("ES_URL not set, product search disabled")
	}

	mail := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	secret := []byte(cfg.JWTSecret)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = web.ErrorHandler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := &httpserver.Deps{
		Auth:     &auth.Middleware{DB: db, Secret: secret},
		Users:    &handlers.UserHandler{DB: db},
		AuthH:    &handlers.AuthHandler{DB: db, JWTSecret: secret, Codes: codes, Mail: mail, Producer: producer, BaseURL: cfg.AppBaseURL},
		Products: &handlers.ProductHandler{DB: db, Producer: producer, Index: productIndex},
		Cart:     &handlers.CartHandler{DB: db},
		Orders:   &handlers.OrderHandler{DB: db, Mail: mail, Producer: producer},
		Payments: &handlers.PaymentHandler{DB: db, Provider: provider, Dedupe: codes, Mail: mail, Producer: producer},
		Reviews:  &handlers.ReviewHandler{DB: db},
		Wishlist: &handlers.WishlistHandler{DB: db},
	}
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}
	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
