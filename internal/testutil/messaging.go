package testutil

import (
	"context"
	"sync"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
)

// RecordingBroker запоминает опубликованные сообщения и хранит подписчиков
type RecordingBroker struct {
	mu       sync.Mutex
	messages []interfaces.Message
	handlers map[string]interfaces.MessageHandler

	// Err возвращается Publish, если задан
	Err error
}

var _ interfaces.MessagingPort = (*RecordingBroker)(nil)

func NewRecordingBroker() *RecordingBroker {
	return &RecordingBroker{handlers: make(map[string]interfaces.MessageHandler)}
}

func (b *RecordingBroker) Publish(ctx context.Context, topic string, message []byte) error {
	return b.PublishWithKey(ctx, topic, "", message)
}

func (b *RecordingBroker) PublishWithKey(_ context.Context, topic string, key string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Err != nil {
		return b.Err
	}
	b.messages = append(b.messages, interfaces.Message{Topic: topic, Key: key, Value: message})
	return nil
}

func (b *RecordingBroker) Subscribe(_ context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = handler
	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, topic)
		return nil
	}, nil
}

// Deliver передает сообщение подписчику темы
func (b *RecordingBroker) Deliver(ctx context.Context, msg *interfaces.Message) error {
	b.mu.Lock()
	handler, ok := b.handlers[msg.Topic]
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return handler(ctx, msg)
}

// Messages возвращает опубликованные сообщения
func (b *RecordingBroker) Messages() []interfaces.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interfaces.Message(nil), b.messages...)
}

func (b *RecordingBroker) Close() error { return nil }
