package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"balance_engine/internal/app/port"
	"balance_engine/internal/app/service"
	"balance_engine/internal/config"
	"balance_engine/internal/domain/entity"
	"balance_engine/internal/infrastructure/restapi"
	"balance_engine/internal/infrastructure/storage/badgerstore"
	"balance_engine/internal/infrastructure/storage/memstore"
	"balance_engine/internal/infrastructure/storage/redisstore"
	"balance_engine/internal/infrastructure/tokenloader"
	"balance_engine/internal/infrastructure/walletloader"
	"balance_engine/internal/infrastructure/webhook"
	"balance_engine/internal/pkg/logger"
	"balance_engine/internal/pkg/metrics"
)

const (
	restoreTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	zapLogger, err := logger.NewZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()
	logger.Init(zapLogger, cfg.Logging.Level)
	appLogger := logger.NewSlogAdapter()
	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	blobs, err := openBlobStore(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open blob store", "driver", cfg.Storage.Driver, "error", err)
	}
	logger.Info("Blob store opened", "driver", cfg.Storage.Driver)

	registry, err := service.NewTokenRegistry(
		time.Duration(cfg.TokenRegistry.PriceTTLMinutes)*time.Minute,
		cfg.TokenRegistry.BaseCurrency,
		cfg.TokenRegistry.CurrencyRates,
		appLogger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize token registry", "error", err)
	}
	if cfg.TokenRegistry.TokensFile != "" {
		loaded, err := tokenloader.NewTokenLoader(cfg.TokenRegistry.TokensFile, appLogger).Load()
		if err != nil {
			logger.Fatal("Failed to load tokens", "path", cfg.TokenRegistry.TokensFile, "error", err)
		}
		if err := registry.UpsertTokens(loaded.Tokens); err != nil {
			logger.Fatal("Invalid token metadata", "error", err)
		}
		quotes := registry.SetPrices(loaded.Quotes)
		logger.Info("Token registry seeded", "tokens", len(loaded.Tokens), "quotes", quotes)
	}

	directory := walletloader.NewAccountDirectory(cfg.Accounts.File)
	if cfg.Accounts.File != "" {
		if err := directory.Load(logger.Info); err != nil {
			logger.Fatal("Failed to load accounts", "path", cfg.Accounts.File, "error", err)
		}
	}

	policies := service.NewPolicyStore()
	store := service.NewBalanceStore(registry, directory, policies, blobs, appLogger, service.NewBalanceStoreConfig(cfg.Engine))
	registry.OnChange(func() { store.Handle(entity.TokenMetadataChanged{}) })

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), restoreTimeout)
	store.LoadFromCache(restoreCtx, directory.IDs())
	cancelRestore()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	dispatcher := webhook.NewDispatcher(cfg.Webhooks.URLs, time.Duration(cfg.Webhooks.RequestTimeoutMillis)*time.Millisecond, appLogger)
	if dispatcher.Enabled() {
		events, unsubscribe := store.Subscribe(cfg.Engine.SubscriberBuffer)
		defer unsubscribe()
		go dispatcher.Run(rootCtx, events)
	}

	handler := restapi.NewBalanceHandler(store, registry, policies, appLogger)
	router := restapi.SetupRouter(handler, restapi.RouterOptions{
		Logger:       zapLogger,
		EventLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.EventsPerSecond), cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	store.Close(ctxShutdown)
	if err := blobs.Close(); err != nil {
		zapLogger.Error("Failed to close blob store", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}

func openBlobStore(cfg config.StorageConfig) (port.BlobStore, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "redis":
		store, err := redisstore.New(cfg.Redis.Addrs, cfg.Redis.Password, cfg.Redis.UseCluster, cfg.Redis.Namespace)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case "badger":
		store, err := badgerstore.Open(cfg.Badger.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
