package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/contracts"
	"listing-scraper-service/internal/core/port"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// taskTimeout ограничивает обработку одного сообщения: обход трех страниц
// выдачи с паузами и ретраями укладывается с запасом
const taskTimeout = 5 * time.Minute

// lastAttemptFunc сообщает, последняя ли это доставка сообщения; nil - номер попытки неизвестен
type lastAttemptFunc func(d amqp.Delivery) bool

func (f lastAttemptFunc) check(d amqp.Delivery) bool {
	return f != nil && f(d)
}

func newLastAttemptFunc(cfg rabbitmq_consumer.ConsumerConfig) lastAttemptFunc {
	if !cfg.EnableRetryMechanism {
		// без механизма повторов каждая неудачная доставка отбрасывается
		return func(amqp.Delivery) bool { return true }
	}
	queue, maxRetries := cfg.QueueName, cfg.MaxRetries
	return func(d amqp.Delivery) bool {
		return rabbitmq_consumer.IsLastAttempt(d, queue, maxRetries)
	}
}

// messageContext достает или генерирует trace_id и кладет логгер сообщения в контекст
func messageContext(d amqp.Delivery, logger port.LoggerPort) (context.Context, context.CancelFunc, port.LoggerPort) {
	traceID, ok := d.Headers[constants.HeaderTraceID].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
		"consumer_tag": d.ConsumerTag,
	})

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)
	return ctx, cancel, msgLogger
}

// decodeEvent проверяет тело по схеме и разбирает его в dst.
// Без заголовков считается, что пришло событие ожидаемого типа версии 1.0.0.
// Ошибки помечаются как постоянные: повтор битого сообщения ничего не даст.
func decodeEvent(d amqp.Delivery, expectedType string, dst any) error {
	eventType, _ := d.Headers[constants.HeaderEventType].(string)
	eventVersion, _ := d.Headers[constants.HeaderEventVersion].(string)
	if eventType == "" {
		eventType = expectedType
	}
	if eventVersion == "" {
		eventVersion = constants.EventVersionV1
	}
	if eventType != expectedType {
		return rabbitmq_consumer.Permanent(fmt.Errorf("unexpected event type %q, want %q", eventType, expectedType))
	}

	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		return rabbitmq_consumer.Permanent(err)
	}
	if err := json.Unmarshal(d.Body, dst); err != nil {
		return rabbitmq_consumer.Permanent(fmt.Errorf("unmarshal DTO error: %w", err))
	}
	return nil
}
