package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pot-code/go-elearning/internal/catalog"
	"github.com/pot-code/go-elearning/internal/course"
	infra "github.com/pot-code/go-elearning/internal/infrastructure"
	"github.com/pot-code/go-elearning/internal/infrastructure/backend"
	"github.com/pot-code/go-elearning/internal/infrastructure/driver"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"github.com/pot-code/go-elearning/internal/infrastructure/uuid"
	"github.com/pot-code/go-elearning/internal/interfaces/rest"
	"github.com/pot-code/go-elearning/internal/notify"
	"github.com/pot-code/go-elearning/internal/progress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	subscriberBuffer = 32
	shutdownTimeout  = 10 * time.Second
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()

	ctx, stop := signalContext(context.Background())
	defer stop()

	api := backend.NewClient(&backend.Config{
		BaseURL: option.Backend.BaseURL,
		Timeout: option.Backend.Timeout,
	})
	logger.Debug("Create backend client", zap.String("backend.url", option.Backend.BaseURL),
		zap.Duration("backend.timeout", option.Backend.Timeout),
	)
	ProgressClient := progress.NewRemoteClient(api)
	CatalogClient := catalog.NewRemoteCatalog(api)

	UUIDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)
	hub := notify.NewHub(subscriberBuffer)
	var (
		publisher notify.Publisher = hub
		probes    []rest.Probe
	)
	eg, egCtx := errgroup.WithContext(ctx)

	if option.KVStore.Enabled {
		rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		origin, err := UUIDGenerator.Generate()
		if err != nil {
			logger.Fatal("Failed to generate instance ID", zap.Error(err))
		}
		bridge := notify.NewRedisBridge(hub, rdb, option.KVStore.Channel, origin,
			logger.With(zap.String("instance.id", origin)))
		bridge.SetRelayTimeout(option.KVStore.Timeout)
		publisher = bridge
		probes = append(probes, rdb.Ping)
		eg.Go(func() error {
			return bridge.Run(egCtx)
		})
		logger.Debug("Relay progress events through redis", zap.String("redis.channel", option.KVStore.Channel))
	}

	registry := progress.NewRegistry(egCtx, ProgressClient, publisher, UUIDGenerator, logger,
		&progress.RegistryOption{
			Watcher: &progress.Options{
				Interval:  option.Progress.Interval,
				Threshold: option.Progress.Threshold,
				Debounce:  option.Progress.Debounce,
			},
		})
	defer registry.CloseAll()
	if idle := option.Progress.SessionIdle; idle > 0 {
		eg.Go(func() error {
			registry.RunReaper(egCtx, idle/2, idle)
			return nil
		})
	}

	app := rest.NewApp(option, &rest.Dependencies{
		Lifetime:       egCtx,
		Registry:       registry,
		ProgressView:   course.NewProgressView(CatalogClient, ProgressClient),
		Subscriber:     hub,
		CatalogUseCase: catalog.NewCatalogUseCase(CatalogClient, ProgressClient),
		Probes:         probes,
	}, logger)
	eg.Go(func() error {
		return rest.Serve(egCtx, app, option, shutdownTimeout, logger)
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		logger.Error("Server stopped", zap.Error(err))
		return
	}
	logger.Info("Server stopped")
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigc:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigc)
	}()
	return ctx, cancel
}
