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
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/messaging"
	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/validation"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/internal/worker"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/tx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики для Prometheus
var (
	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_processed_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})

	messageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_message_processing_duration_seconds",
		Help:    "Длительность обработки сообщений",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active_goroutines",
		Help: "Количество активных горутин-обработчиков",
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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	// HTTP сервер для метрик и проверки живости
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("Запуск HTTP сервера для метрик", interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	dsn, err := cfg.PostgresDSN()
	if err != nil {
		log.Fatal("Ошибка генерации строки подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	storage, pool, err := postgres.NewPostgresStorage(ctx, dsn)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer storage.Close()
	log.Info("Хранилище инициализировано")

	redisCache, err := cache.NewRedisCache(ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.Prefix,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	cacheClient := cache.NewInstrumentedCache(redisCache, cacheOperations)
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.ClientID+"-worker", cfg.Kafka.GroupID, log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	settings := cfg.PluginSettings()
	registry := hooks.NewRegistry()
	caps := security.NewAuthorizer(cfg.Security.RoleCapabilities)
	txManager := tx.NewTxManager(pool)
	normalizer := validation.NewNormalizer(log, settings.Debug, nil)
	accessors := services.NewAccessorFactory(storage, storage, txManager, cacheClient, registry, normalizer, log, settings)
	identifierService := services.NewIdentifierService(storage, txManager, cacheClient, accessors, registry,
		services.NewPluginState(), log, settings)
	messaging.NewEventPublisher(messagingClient, cfg.Kafka.Identifiers, log).Register(registry)

	if err := identifierService.Activate(ctx); err != nil && !errors.Is(err, utils.ErrHostUnavailable) {
		log.Fatal("Ошибка проверки каталога", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	w := worker.New(identifierService, caps, messagingClient, cfg.WorkerPrincipal(),
		worker.Topics{ProductEvents: cfg.Kafka.ProductEvents, Commands: cfg.Kafka.Commands},
		worker.Metrics{Processed: messagesProcessed, Duration: messageProcessingDuration, Active: activeWorkers},
		log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
	}()

	log.Info("Воркер запущен и готов к обработке сообщений")
	if err := w.Run(ctx); err != nil {
		log.Error("Ошибка остановки воркера", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("Воркер корректно завершил работу")
	_ = log.Sync()
}
