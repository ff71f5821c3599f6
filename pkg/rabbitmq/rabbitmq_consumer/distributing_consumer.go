package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listing-scraper-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Ack/Nack делает пакет:
// nil - ack, ошибка - ретрай, ошибка с Permanent - сразу в финальный DLX.
type MessageHandler func(delivery amqp.Delivery) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неисправимую повтором (битое сообщение и т.п.)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка через Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// DistributingConsumer обрабатывает каждое сообщение в отдельной горутине;
// число одновременных обработчиков ограничено prefetch
type DistributingConsumer struct {
	baseConsumer *baseConsumer
	handler      MessageHandler
}

// NewDistributingConsumer создает потребителя и объявляет топологию
func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, errors.New("distributing Consumer: message handler is required")
	}
	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("distributing Consumer: %w", err)
	}
	return &DistributingConsumer{baseConsumer: bc, handler: handler}, nil
}

// StartConsuming блокируется до отмены ctx (возвращает nil) или закрытия соединения (возвращает ошибку)
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	bc := c.baseConsumer
	if bc.channel == nil || bc.connection == nil || bc.connection.IsClosed() {
		return errors.New("distributing Consumer: not connected")
	}

	msgs, err := bc.channel.Consume(
		bc.actualQueueName,
		bc.config.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("distributing Consumer %s: failed to register a consumer on queue '%s': %w", bc.config.ConsumerTag, bc.actualQueueName, err)
	}

	bc.Logger.Info("Waiting for messages on queue", "queue_name", bc.actualQueueName)

	go c.dispatch(ctx, msgs)

	notifyClose := bc.connection.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		bc.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", bc.config.ConsumerTag)
		return nil
	case amqpErr, ok := <-notifyClose:
		if !ok || amqpErr == nil {
			return errors.New("distributing Consumer: connection closed")
		}
		bc.Logger.Error(amqpErr, "Connection closed for consumer.", "consumer_tag", bc.config.ConsumerTag)
		return amqpErr
	}
}

// dispatch читает доставки и запускает обработчики, пока ctx не отменен
func (c *DistributingConsumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) {
	bc := c.baseConsumer
	for {
		// отмена приоритетнее новых сообщений
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				bc.Logger.Info("Deliveries channel closed by RabbitMQ", "consumer_tag", bc.config.ConsumerTag)
				return
			}
			bc.wg.Add(1)
			go func(delivery amqp.Delivery) {
				defer bc.wg.Done()
				c.handleDelivery(delivery)
			}(d)
		}
	}
}

// handleDelivery вызывает обработчик и решает судьбу сообщения
func (c *DistributingConsumer) handleDelivery(d amqp.Delivery) {
	bc := c.baseConsumer
	tag := bc.config.ConsumerTag

	processErr := c.handler(d)
	if processErr == nil {
		_ = d.Ack(false)
		bc.Logger.Debug("Message acked", "consumer_tag", tag, "delivery_tag", d.DeliveryTag)
		return
	}

	bc.Logger.Error(processErr, "Handler error for message", "consumer_tag", tag, "delivery_tag", d.DeliveryTag)

	if !bc.config.EnableRetryMechanism {
		_ = d.Nack(false, false)
		return
	}

	permanent := IsPermanent(processErr)
	deaths := deathCount(d, bc.actualQueueName)
	if !permanent && !IsLastAttempt(d, bc.actualQueueName, bc.config.MaxRetries) {
		bc.Logger.Info("Retrying message", "consumer_tag", tag, "delivery_tag", d.DeliveryTag, "death_count", deaths)
		_ = d.Nack(false, false)
		return
	}

	bc.Logger.Warn("Publishing message to final DLX",
		"consumer_tag", tag,
		"delivery_tag", d.DeliveryTag,
		"permanent", permanent,
		"death_count", deaths,
	)
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-last-error"] = processErr.Error()

	err := bc.finalDLX.Publish(context.Background(), bc.config.FinalDLQRoutingKey, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      headers,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		// не смогли отправить в DLQ - пусть сообщение пройдет через ретрай еще раз
		bc.Logger.Error(err, "Failed to publish to final DLX", "consumer_tag", tag, "delivery_tag", d.DeliveryTag)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close ждет активные обработчики и закрывает канал
func (c *DistributingConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer", "consumer_tag", c.baseConsumer.config.ConsumerTag)
	return c.baseConsumer.Close()
}
