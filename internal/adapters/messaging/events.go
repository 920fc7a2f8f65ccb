package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/google/uuid"
)

type KafkaEvent = string

// События платформы (тема product-events)
const (
	ProductCreatedEvent = "product_created"
	ProductUpdatedEvent = "product_updated"
	ProductDeletedEvent = "product_deleted"
)

// Команды плагину (тема ean-commands)
const (
	SetIdentifiersCommand = "set_identifiers"
	UninstallCommand      = "uninstall"
)

// События плагина (тема product-identifiers)
const (
	IdentifiersUpdatedEvent = "identifiers_updated"
	IdentifiersPurgedEvent  = "identifiers_purged"
)

// Темы по умолчанию
const (
	TopicProductEvents      = "product-events"
	TopicCommands           = "ean-commands"
	TopicProductIdentifiers = "product-identifiers"
)

// Envelope - общий формат сообщений во всех темах
type Envelope struct {
	ID         string          `json:"id"`
	Type       KafkaEvent      `json:"type"`
	ProductID  int64           `json:"product_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEnvelope упаковывает payload в конверт
func NewEnvelope(eventType KafkaEvent, productID int64, payload interface{}) (*Envelope, error) {
	env := &Envelope{
		ID:         uuid.New().String(),
		Type:       eventType,
		ProductID:  productID,
		OccurredAt: time.Now().UTC(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		env.Payload = data
	}

	return env, nil
}

// DecodeEnvelope разбирает сообщение
func DecodeEnvelope(msg *interfaces.Message) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("message %s has no type", msg.ID)
	}
	return &env, nil
}

// EventPublisher публикует события сохранения и удаления идентификаторов
type EventPublisher struct {
	broker interfaces.MessagingPort
	topic  string
	logger interfaces.LoggerPort
}

// NewEventPublisher создает издателя. Пустая тема заменяется на product-identifiers.
func NewEventPublisher(broker interfaces.MessagingPort, topic string, logger interfaces.LoggerPort) *EventPublisher {
	if topic == "" {
		topic = TopicProductIdentifiers
	}
	return &EventPublisher{broker: broker, topic: topic, logger: logger}
}

// Register подписывает издателя на действия реестра
func (p *EventPublisher) Register(registry *hooks.Registry) {
	registry.Saved.Add(hooks.DefaultPriority, p.OnSaved)
	registry.Purged.Add(hooks.DefaultPriority, p.OnPurged)
}

// OnSaved публикует identifiers_updated с ключом по ID товара
func (p *EventPublisher) OnSaved(ctx context.Context, event models.IdentifiersEvent) {
	p.publish(ctx, IdentifiersUpdatedEvent, event.ProductID, event)
}

// OnPurged публикует identifiers_purged
func (p *EventPublisher) OnPurged(ctx context.Context, report models.UninstallReport) {
	p.publish(ctx, IdentifiersPurgedEvent, 0, report)
}

// publish только логирует ошибки публикации
func (p *EventPublisher) publish(ctx context.Context, eventType KafkaEvent, productID int64, payload interface{}) {
	env, err := NewEnvelope(eventType, productID, payload)
	if err != nil {
		p.logger.ErrorWithContext(ctx, "Ошибка формирования события", interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		p.logger.ErrorWithContext(ctx, "Ошибка сериализации события", interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}

	key := eventType
	if productID != 0 {
		key = strconv.FormatInt(productID, 10)
	}

	if err := p.broker.PublishWithKey(ctx, p.topic, key, data); err != nil {
		p.logger.ErrorWithContext(ctx, "Ошибка публикации события",
			interfaces.LogField{Key: "type", Value: eventType},
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}

	p.logger.DebugWithContext(ctx, "Событие опубликовано",
		interfaces.LogField{Key: "type", Value: eventType},
		interfaces.LogField{Key: "id", Value: env.ID})
}
