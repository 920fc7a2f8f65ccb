package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

// Статусы обработки сообщений в метриках
const (
	statusSuccess = "success"
	statusError   = "error"
	statusSkipped = "skipped"
	statusDenied  = "denied"
	statusUnknown = "unknown"
)

// Metrics - коллекторы метрик воркера, любой может быть nil
type Metrics struct {
	Processed *prometheus.CounterVec   // labels: topic, status
	Duration  *prometheus.HistogramVec // labels: topic
	Active    prometheus.Gauge
}

// Topics - темы, которые читает воркер
type Topics struct {
	ProductEvents string
	Commands      string
}

// Worker применяет события платформы и команды плагину
type Worker struct {
	service   *services.IdentifierService
	caps      services.CapabilityChecker
	broker    interfaces.MessagingPort
	principal *interfaces.Principal
	topics    Topics
	metrics   Metrics
	logger    interfaces.LoggerPort
}

// New создает воркер. Команды выполняются от имени principal.
func New(
	service *services.IdentifierService,
	caps services.CapabilityChecker,
	broker interfaces.MessagingPort,
	principal *interfaces.Principal,
	topics Topics,
	metrics Metrics,
	logger interfaces.LoggerPort,
) *Worker {
	if topics.ProductEvents == "" {
		topics.ProductEvents = messaging.TopicProductEvents
	}
	if topics.Commands == "" {
		topics.Commands = messaging.TopicCommands
	}
	return &Worker{
		service:   service,
		caps:      caps,
		broker:    broker,
		principal: principal,
		topics:    topics,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run подписывается на темы и блокируется до отмены ctx
func (w *Worker) Run(ctx context.Context) error {
	subscriptions := []struct {
		topic   string
		handler interfaces.MessageHandler
	}{
		{w.topics.ProductEvents, w.HandleProductEvent},
		{w.topics.Commands, w.HandleCommand},
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(subscriptions))

	for _, s := range subscriptions {
		unsubscribe, err := w.broker.Subscribe(ctx, s.topic, s.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
		}
		w.logger.Info("Подписка установлена", interfaces.LogField{Key: "topic", Value: s.topic})

		wg.Add(1)
		go func(topic string, unsubscribe func() error) {
			defer wg.Done()
			<-ctx.Done()
			w.logger.Info("Отмена подписки", interfaces.LogField{Key: "topic", Value: topic})
			if err := unsubscribe(); err != nil {
				errCh <- fmt.Errorf("failed to unsubscribe from %s: %w", topic, err)
			}
		}(s.topic, unsubscribe)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HandleProductEvent обрабатывает события платформы о товарах
func (w *Worker) HandleProductEvent(ctx context.Context, msg *interfaces.Message) error {
	return w.handle(ctx, msg, func(ctx context.Context, env *messaging.Envelope) (string, error) {
		switch env.Type {
		case messaging.ProductDeletedEvent:
			n, err := w.service.DeleteProductIdentifiers(ctx, env.ProductID)
			if errors.Is(err, utils.ErrInvalidProductId) {
				return statusSkipped, nil
			}
			if err != nil {
				return statusError, err
			}
			w.logger.InfoWithContext(ctx, "Идентификаторы удаленного товара очищены",
				interfaces.LogField{Key: "product_id", Value: env.ProductID},
				interfaces.LogField{Key: "deleted", Value: n})
			return statusSuccess, nil

		case messaging.ProductCreatedEvent, messaging.ProductUpdatedEvent:
			return statusSkipped, nil

		default:
			return statusUnknown, nil
		}
	})
}

// HandleCommand обрабатывает команды плагину
func (w *Worker) HandleCommand(ctx context.Context, msg *interfaces.Message) error {
	return w.handle(ctx, msg, func(ctx context.Context, env *messaging.Envelope) (string, error) {
		switch env.Type {
		case messaging.SetIdentifiersCommand:
			return w.setIdentifiers(ctx, env)
		case messaging.UninstallCommand:
			return w.uninstall(ctx)
		default:
			return statusUnknown, nil
		}
	})
}

func (w *Worker) setIdentifiers(ctx context.Context, env *messaging.Envelope) (string, error) {
	if !w.caps.Can(ctx, models.CapEditProducts) {
		return statusDenied, nil
	}
	if err := w.service.State().Err(); err != nil {
		w.logger.WarnWithContext(ctx, "Плагин недоступен, команда пропущена",
			interfaces.LogField{Key: "reason", Value: err.Error()})
		return statusSkipped, nil
	}

	var data models.Payload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &data); err != nil {
			// битые данные команды не повторяем
			w.logger.ErrorWithContext(ctx, "Ошибка декодирования данных команды",
				interfaces.LogField{Key: "product_id", Value: env.ProductID},
				interfaces.LogField{Key: "error", Value: err.Error()})
			return statusError, nil
		}
	}

	err := w.service.SetLegacyData(ctx, env.ProductID, data)
	switch {
	case errors.Is(err, utils.ErrProductNotFound), errors.Is(err, utils.ErrInvalidProductId):
		w.logger.WarnWithContext(ctx, "Команда для неизвестного товара пропущена",
			interfaces.LogField{Key: "product_id", Value: env.ProductID})
		return statusSkipped, nil
	case err != nil:
		return statusError, err
	}
	return statusSuccess, nil
}

func (w *Worker) uninstall(ctx context.Context) (string, error) {
	if !w.caps.Can(ctx, models.CapActivatePlugins) {
		return statusDenied, nil
	}

	report, err := w.service.Uninstall(ctx, false)
	if err != nil {
		return statusError, err
	}
	w.logger.InfoWithContext(ctx, "Данные плагина удалены по команде",
		interfaces.LogField{Key: "summary", Value: report.Summary()})
	return statusSuccess, nil
}

// handle разбирает конверт, выполняет fn от имени принципала воркера и пишет метрики.
// Ошибка возвращается брокеру только при сбое обработки, сообщение тогда не подтверждается.
func (w *Worker) handle(ctx context.Context, msg *interfaces.Message, fn func(context.Context, *messaging.Envelope) (string, error)) error {
	start := time.Now()
	if w.metrics.Active != nil {
		w.metrics.Active.Inc()
		defer w.metrics.Active.Dec()
	}

	ctx = context.WithValue(ctx, "request_id", msg.ID)
	if w.principal != nil {
		ctx = auth.WithPrincipal(ctx, w.principal)
	}

	env, err := messaging.DecodeEnvelope(msg)
	if err != nil {
		// битое сообщение не повторяем
		w.logger.ErrorWithContext(ctx, "Ошибка декодирования сообщения",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.LogField{Key: "error", Value: err.Error()})
		w.count(msg.Topic, statusError)
		return nil
	}

	status, err := fn(ctx, env)
	w.count(msg.Topic, status)

	switch status {
	case statusUnknown:
		w.logger.WarnWithContext(ctx, "Неизвестный тип сообщения",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.LogField{Key: "type", Value: env.Type})
		return nil
	case statusDenied:
		w.logger.WarnWithContext(ctx, "Недостаточно прав для выполнения команды",
			interfaces.LogField{Key: "type", Value: env.Type})
		return nil
	}

	if err != nil {
		w.logger.ErrorWithContext(ctx, "Ошибка обработки сообщения",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.LogField{Key: "type", Value: env.Type},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}

	duration := time.Since(start).Seconds()
	if w.metrics.Duration != nil {
		w.metrics.Duration.WithLabelValues(msg.Topic).Observe(duration)
	}
	w.logger.DebugWithContext(ctx, "Сообщение обработано",
		interfaces.LogField{Key: "type", Value: env.Type},
		interfaces.LogField{Key: "duration", Value: duration})
	return nil
}

func (w *Worker) count(topic, status string) {
	if w.metrics.Processed != nil {
		w.metrics.Processed.WithLabelValues(topic, status).Inc()
	}
}
