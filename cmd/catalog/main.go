package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/affiliate_catalog/internal/config"
	"github.com/Skotchmaster/affiliate_catalog/internal/credentials"
	"github.com/Skotchmaster/affiliate_catalog/internal/events"
	"github.com/Skotchmaster/affiliate_catalog/internal/httpserver"
	"github.com/Skotchmaster/affiliate_catalog/internal/logging"
	authmw "github.com/Skotchmaster/affiliate_catalog/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/affiliate_catalog/internal/middleware/logging"
	"github.com/Skotchmaster/affiliate_catalog/internal/middleware/ratelimit"
	"github.com/Skotchmaster/affiliate_catalog/internal/repo"
	"github.com/Skotchmaster/affiliate_catalog/internal/search"
	"github.com/Skotchmaster/affiliate_catalog/internal/service"
)

func main() {
	cfg := config.Load()
	config.MustOneOf(cfg.StorageDriver, "STORAGE_DRIVER", repo.DriverJSON, repo.DriverBolt, repo.DriverSQLite, repo.DriverPostgres)
	if cfg.NeedsDatabaseURL() {
		config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if cfg.UsesDefaultSecret() {
		logger.Warn("jwt_secret_default", "reason", "JWT_SECRET is not set, tokens are signed with the built-in development secret")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := repo.Open(ctx, repo.Options{
		Driver:      cfg.StorageDriver,
		DataFile:    cfg.DataFile,
		BoltPath:    cfg.BoltPath,
		DatabaseURL: cfg.DatabaseURL,
	})
	cancel()
	if err != nil {
		log.Fatalf("storage open (%s): %v", cfg.StorageDriver, err)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var index search.Index
	if cfg.ESURL != "" {
		esIndex, err := search.NewESIndex(search.Config{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			logger.Warn("search_index_disabled", "error", err)
		} else {
			index = esIndex
		}
	}

	rdb := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	authSvc := &service.AuthService{
		Creds: &credentials.Store{
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			FilePath:     cfg.AuthFile,
		},
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}
	catalogSvc := &service.CatalogService{Repo: store, Publisher: publisher, Index: index}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Secure())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("1M"))

	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalogSvc},
		AuthHandler:    &httpserver.AuthHTTP{Svc: authSvc},
		RequireAdmin:   authmw.RequireAdmin(authSvc),
		LoginLimiter: ratelimit.New(ratelimit.Config{
			Limit:  cfg.LoginRateLimit,
			Window: cfg.LoginRateWindow,
			Prefix: "rl:login",
		}, rdb),
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if err := publisher.Close(); err != nil {
		logger.Warn("kafka_close_error", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := store.Close(); err != nil {
		logger.Warn("storage_close_error", "error", err)
	}

	logger.Info("stopped")
}
