package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contextkeys"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 10 * time.Second

// Publisher - то, что адаптерам нужно от rabbitmq_producer.Publisher
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// publishEvent сериализует payload и публикует его с заголовками типа события и trace_id
func publishEvent(ctx context.Context, producer Publisher, routingKey, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			constants.HeaderEventType:    eventType,
			constants.HeaderEventVersion: constants.EventVersionV1,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[constants.HeaderTraceID] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return producer.Publish(publishCtx, routingKey, msg)
}

func checkProducer(producer Publisher, routingKey string) error {
	if producer == nil {
		return fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return nil
}
