package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/athebyme/gomarket-platform/ean-service/config"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/cache"
	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/cli"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/validation"
	migrations "github.com/athebyme/gomarket-platform/ean-service/internal/infrastructure/postgres"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/tx"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// open подключает каталог и кэш так же, как API, но без HTTP и Kafka
func open(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (*cli.Env, error) {
	dsn, err := cfg.PostgresDSN()
	if err != nil {
		return nil, fmt.Errorf("failed to build postgres dsn: %w", err)
	}

	storage, pool, err := postgres.NewPostgresStorage(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	closers := []func(){func() { _ = storage.Close() }}

	var cacheClient interfaces.CachePort
	redisCache, err := cache.NewRedisCache(ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.Prefix,
	)
	if err != nil {
		log.Warn("Кэш недоступен, команды выполняются без него",
			interfaces.LogField{Key: "error", Value: err.Error()})
	} else {
		ops := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Количество операций с кэшем",
		}, []string{"operation", "status"})
		instrumented := cache.NewInstrumentedCache(redisCache, ops)
		cacheClient = instrumented
		closers = append(closers, func() { _ = instrumented.Close() })
	}

	settings := cfg.PluginSettings()
	registry := hooks.NewRegistry()
	txManager := tx.NewTxManager(pool)
	normalizer := validation.NewNormalizer(log, settings.Debug, nil)
	accessors := services.NewAccessorFactory(storage, storage, txManager, cacheClient, registry, normalizer, log, settings)
	service := services.NewIdentifierService(storage, txManager, cacheClient, accessors, registry,
		services.NewPluginState(), log, settings)

	if err := service.Activate(ctx); err != nil && !errors.Is(err, utils.ErrHostUnavailable) {
		log.Warn("Ошибка проверки каталога", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	migrator := migrations.NewMigrator(pool, log)
	closers = append(closers, func() { _ = migrator.Close() })

	return &cli.Env{
		Service:   service,
		Caps:      security.NewAuthorizer(cfg.Security.RoleCapabilities),
		Principal: cfg.WorkerPrincipal(),
		Migrate: func(ctx context.Context) (int64, error) {
			if err := migrator.Up(ctx); err != nil {
				return 0, err
			}
			return migrator.Version(ctx)
		},
		Rollback: migrator.Down,
		Close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}
