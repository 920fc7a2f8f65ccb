//	@title						EAN Service API
//	@version					1.0
//	@description				GTIN и MPN идентификаторы товаров каталога
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
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

	"github.com/athebyme/gomarket-platform/ean-service/config"
	_ "github.com/athebyme/gomarket-platform/ean-service/docs"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/messaging"
	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/api"
	"github.com/athebyme/gomarket-platform/ean-service/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/validation"
	migrations "github.com/athebyme/gomarket-platform/ean-service/internal/infrastructure/postgres"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/tx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// метрики для Prometheus
var (
	httpDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})

	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_requests",
		Help: "Количество активных HTTP запросов",
	})

	cacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Количество операций с кэшем",
	}, []string{"operation", "status"})
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	dsn, err := cfg.PostgresDSN()
	if err != nil {
		log.Fatal("Ошибка формирования строки подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	storage, pool, err := postgres.NewPostgresStorage(ctx, dsn)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Хранилище инициализировано")

	if cfg.Postgres.AutoMigrate {
		migrator := migrations.NewMigrator(pool, log)
		if err := migrator.Up(ctx); err != nil {
			log.Fatal("Ошибка применения миграций", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		_ = migrator.Close()
	}

	redisCache, err := cache.NewRedisCache(ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.Prefix,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	cacheClient := cache.NewInstrumentedCache(redisCache, cacheOperations)
	log.Info("Кэш инициализирован")

	messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.GroupID, log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	if cfg.Kafka.EnsureTopics {
		topics := []string{cfg.Kafka.ProductEvents, cfg.Kafka.Commands, cfg.Kafka.Identifiers}
		if err := messagingClient.EnsureTopics(ctx, topics, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			log.Warn("Не удалось создать топики Kafka", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	log.Info("Система обмена сообщениями инициализирована")

	settings := cfg.PluginSettings()
	normalizations := validation.NewNormalizationCounter()
	prometheus.MustRegister(normalizations)

	registry := hooks.NewRegistry()
	caps := security.NewAuthorizer(cfg.Security.RoleCapabilities)
	txManager := tx.NewTxManager(pool)
	normalizer := validation.NewNormalizer(log, settings.Debug, normalizations)
	accessors := services.NewAccessorFactory(storage, storage, txManager, cacheClient, registry, normalizer, log, settings)
	state := services.NewPluginState()
	identifierService := services.NewIdentifierService(storage, txManager, cacheClient, accessors, registry, state, log, settings)

	messaging.NewEventPublisher(messagingClient, cfg.Kafka.Identifiers, log).Register(registry)
	services.RegisterAPISurface(registry, accessors, caps, log)
	productService := services.NewProductService(storage, registry)

	if err := identifierService.Activate(ctx); err != nil {
		if !errors.Is(err, utils.ErrHostUnavailable) {
			log.Fatal("Ошибка активации плагина", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Warn(handlers.HostMissingNotice)
	}
	log.Debug("Обработчики зарегистрированы", interfaces.LogField{Key: "hooks", Value: registry.Describe()})

	authPort, oauth, err := newAuthPort(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации аутентификации", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	nonces, err := security.NewNonceManager(cfg.Security.NonceSecret, cfg.Security.NonceLifetime)
	if err != nil {
		log.Fatal("Ошибка инициализации CSRF токенов", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	router, err := api.SetupRouter(api.RouterConfig{
		Logger:             log,
		Identifiers:        identifierService,
		Products:           productService,
		Caps:               caps,
		Nonces:             nonces,
		Auth:               authPort,
		OAuth:              oauth,
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
		BodyLimitMB:        cfg.Server.BodyLimit,
		RateLimitRPS:       cfg.Security.RateLimitRPS,
		RateLimitBurst:     cfg.Security.RateLimitBurst,
		SecureCookies:      cfg.IsProduction(),
		Metrics: api.HTTPMetrics{
			Durations: httpDurations,
			Requests:  requestsCounter,
			Active:    activeRequests,
		},
		Readiness: map[string]interfaces.StoragePort{
			"postgres": storage,
			"redis":    redisCache,
		},
	})
	if err != nil {
		log.Fatal("Ошибка настройки маршрутизатора", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Запуск HTTP сервера для метрик", interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ошибка HTTP сервера для метрик", interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		log.Info("HTTP сервер остановлен")

		log.Info("Закрытие соединений с зависимостями...")

		if err := messagingClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Kafka", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		if err := cacheClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Redis", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		if err := storage.Close(); err != nil {
			log.Error("Ошибка при закрытии БД", interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
	_ = log.Sync()
}

// newAuthPort выбирает проверку токенов: Keycloak, если он включен, иначе локальные JWT
func newAuthPort(ctx context.Context, cfg *config.Config) (interfaces.AuthPort, handlers.OAuthFlow, error) {
	if cfg.Keycloak.Enabled {
		client, err := auth.NewKeycloakClient(ctx, cfg.Keycloak.GetKeycloakConfig())
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}

	publicKey, err := os.ReadFile(cfg.Security.JWTPublicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read JWT public key: %w", err)
	}

	var privateKey []byte
	if cfg.Security.JWTPrivateKeyPath != "" {
		if privateKey, err = os.ReadFile(cfg.Security.JWTPrivateKeyPath); err != nil {
			return nil, nil, fmt.Errorf("failed to read JWT private key: %w", err)
		}
	}

	manager, err := security.NewJWTManager(privateKey, publicKey, cfg.Security.JWTExpirationMin, cfg.Security.JWTIssuer)
	if err != nil {
		return nil, nil, err
	}
	return manager, nil, nil
}
