package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*kafka.Consumer
	consumersMutex sync.Mutex
	brokers        string
	groupID        string
	logger         interfaces.LoggerPort
}

var _ interfaces.MessagingPort = (*KafkaMessaging)(nil)

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(brokers []string, clientID, groupID string, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	servers := strings.Join(brokers, ",")

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": servers,
		"client.id":         clientID,
		"acks":              "all",
		"retries":           5,
		"retry.backoff.ms":  500,
		"compression.type":  "snappy",
		"linger.ms":         10,
		"message.max.bytes": 1000000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer:  producer,
		consumers: make(map[string]*kafka.Consumer),
		brokers:   servers,
		groupID:   groupID,
		logger:    logger,
	}

	go k.watchDeliveries()

	return k, nil
}

// watchDeliveries логирует неудачные доставки producer'а
func (k *KafkaMessaging) watchDeliveries() {
	for ev := range k.producer.Events() {
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			k.logger.Error("Ошибка доставки сообщения в Kafka",
				interfaces.LogField{Key: "topic", Value: *m.TopicPartition.Topic},
				interfaces.LogField{Key: "error", Value: m.TopicPartition.Error.Error()})
		}
	}
}

// messageToKafkaMessage преобразует сообщение в kafka.Message
func messageToKafkaMessage(ctx context.Context, topic string, message []byte, key string) *kafka.Message {
	headers := []kafka.Header{
		{Key: "message_id", Value: []byte(uuid.New().String())},
		{Key: "timestamp", Value: []byte(strconv.FormatInt(time.Now().UnixNano(), 10))},
	}
	if reqID, ok := ctx.Value("request_id").(string); ok {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(reqID)})
	}

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        headers,
	}
}

// kafkaMessageToMessage преобразует kafka.Message в Message
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	publishedAt := msg.Timestamp
	if ns, err := strconv.ParseInt(headers["timestamp"], 10, 64); err == nil {
		publishedAt = time.Unix(0, ns)
	}

	var topic string
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       topic,
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey публикует сообщение с указанным ключом
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	if err := k.producer.Produce(messageToKafkaMessage(ctx, topic, message, key), nil); err != nil {
		return fmt.Errorf("ошибка публикации в топик %s: %w", topic, err)
	}
	return nil
}

// Subscribe подписывается на тему с настройками по умолчанию
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	return k.SubscribeWithConfig(ctx, topic, handler, &interfaces.ConsumerConfig{
		GroupID:            k.groupID,
		AutoCommit:         false,
		AutoCommitInterval: 5 * time.Second,
		PollTimeout:        100 * time.Millisecond,
		AutoOffsetReset:    "earliest",
	})
}

// SubscribeWithConfig подписывается на указанную тему с дополнительными настройками
func (k *KafkaMessaging) SubscribeWithConfig(ctx context.Context, topic string, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) (func() error, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.brokers,
		"group.id":                config.GroupID,
		"auto.offset.reset":       config.AutoOffsetReset,
		"enable.auto.commit":      config.AutoCommit,
		"auto.commit.interval.ms": int(config.AutoCommitInterval.Milliseconds()),
		"session.timeout.ms":      30000,
		"max.poll.interval.ms":    300000,
		"heartbeat.interval.ms":   3000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на топик %s: %w", topic, err)
	}

	consumerID := uuid.New().String()
	k.consumersMutex.Lock()
	k.consumers[consumerID] = consumer
	k.consumersMutex.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.consumeMessages(ctx, consumer, handler, config)
	}()

	unsubscribe := func() error {
		k.consumersMutex.Lock()
		c, ok := k.consumers[consumerID]
		delete(k.consumers, consumerID)
		k.consumersMutex.Unlock()

		if !ok {
			return nil
		}
		<-done
		return c.Close()
	}

	return unsubscribe, nil
}

// consumeMessages читает сообщения до отмены контекста
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(config.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := kafkaMessageToMessage(e)
			if err := handler(ctx, msg); err != nil {
				k.logger.Error("Ошибка обработки сообщения",
					interfaces.LogField{Key: "topic", Value: msg.Topic},
					interfaces.LogField{Key: "message_id", Value: msg.ID},
					interfaces.LogField{Key: "error", Value: err.Error()})
				continue
			}

			if !config.AutoCommit {
				if _, err := consumer.CommitMessage(e); err != nil {
					k.logger.Warn("Не удалось подтвердить сообщение",
						interfaces.LogField{Key: "topic", Value: msg.Topic},
						interfaces.LogField{Key: "error", Value: err.Error()})
				}
			}

		case kafka.Error:
			k.logger.Error("Ошибка Kafka", interfaces.LogField{Key: "error", Value: e.Error()})
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}
		}
	}
}

// EnsureTopics создает недостающие топики
func (k *KafkaMessaging) EnsureTopics(ctx context.Context, topics []string, partitions, replicationFactor int) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("ошибка создания Kafka admin client: %w", err)
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	result, err := adminClient.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	for _, r := range result {
		code := r.Error.Code()
		if code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("ошибка создания топика %s: %s", r.Topic, r.Error.String())
		}
	}

	return nil
}

// Close закрывает consumer'ов и дожидается отправки сообщений producer'а
func (k *KafkaMessaging) Close() error {
	k.consumersMutex.Lock()
	for id, consumer := range k.consumers {
		consumer.Close()
		delete(k.consumers, id)
	}
	k.consumersMutex.Unlock()

	k.producer.Flush(15 * 1000)
	k.producer.Close()

	return nil
}
