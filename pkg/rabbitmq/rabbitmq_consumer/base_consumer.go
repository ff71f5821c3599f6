package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"listing-scraper-service/pkg/rabbitmq/rabbitmq_common"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig конфигурация для потребителя
type ConsumerConfig struct {
	rabbitmq_common.Config

	// очередь
	QueueName       string
	DeclareQueue    bool
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table

	// обменник и привязка; пустое имя - без привязки
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	RoutingKeyForBind      string

	// QoS; prefetch заодно ограничивает число одновременных обработчиков
	PrefetchCount int

	ConsumerTag string

	// ретраи через wait-очередь с TTL и финальный DLX
	EnableRetryMechanism bool
	RetryExchange        string
	RetryQueue           string
	RetryTTL             int // мс
	FinalDLXExchange     string
	FinalDLQ             string
	FinalDLQRoutingKey   string
	MaxRetries           int // помимо первой попытки

	Logger rabbitmq_common.Logger
}

// Validate проверяет конфигурацию до подключения к брокеру
func (cfg ConsumerConfig) Validate() error {
	if err := cfg.Config.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if !cfg.DeclareQueue && cfg.QueueName == "" {
		return errors.New("queue name is required if DeclareQueue is false")
	}
	if cfg.DeclareExchangeForBind && (cfg.ExchangeNameForBind == "" || cfg.ExchangeTypeForBind == "") {
		return errors.New("exchange name and type are required when declaring an exchange for binding")
	}
	if cfg.EnableRetryMechanism {
		switch {
		case cfg.QueueName == "":
			return errors.New("retry mechanism needs a named queue")
		case cfg.ExchangeNameForBind == "":
			return errors.New("retry mechanism needs an exchange to return messages to")
		case cfg.RetryExchange == "" || cfg.RetryQueue == "":
			return errors.New("retry exchange and retry queue are required")
		case cfg.FinalDLXExchange == "" || cfg.FinalDLQ == "":
			return errors.New("final DLX and DLQ are required")
		case cfg.RetryTTL <= 0:
			return errors.New("retry TTL must be positive")
		case cfg.MaxRetries < 0:
			return errors.New("max retries cannot be negative")
		}
	}
	return nil
}

// dlxPublisher - то, что нужно от издателя в финальный DLX
type dlxPublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	Close() error
}

// baseConsumer - подключение, топология и учет ретраев
type baseConsumer struct {
	config          ConsumerConfig
	connection      *amqp.Connection
	channel         *amqp.Channel
	actualQueueName string
	finalDLX        dlxPublisher
	wg              sync.WaitGroup

	Logger rabbitmq_common.Logger
}

func newBaseConsumer(cfg ConsumerConfig, connManager *rabbitmq_common.ConnectionManager) (*baseConsumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("base Consumer: %w", err)
	}
	if connManager == nil {
		return nil, errors.New("base Consumer: connection manager is required")
	}

	c := &baseConsumer{
		config: cfg,
		Logger: rabbitmq_common.OrNoop(cfg.Logger),
	}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("base Consumer: failed to get channel from manager: %w", err)
	}
	c.connection = conn
	c.channel = ch

	if err := c.setupTopology(); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("base Consumer: setup failed: %w", err)
	}

	if cfg.EnableRetryMechanism {
		pub, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:       cfg.Config,
			ExchangeName: cfg.FinalDLXExchange, // объявлен в setupTopology
			Logger:       c.Logger,
		}, connManager)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("base Consumer: failed to create final DLX publisher: %w", err)
		}
		c.finalDLX = pub
	}

	return c, nil
}

// queueArgs - аргументы основной очереди; при ретраях отвергнутые сообщения уходят в retry-обменник
func (c *baseConsumer) queueArgs() amqp.Table {
	args := amqp.Table{}
	for k, v := range c.config.QueueArgs {
		args[k] = v
	}
	if c.config.EnableRetryMechanism {
		args["x-dead-letter-exchange"] = c.config.RetryExchange
	}
	return args
}

// setupTopology объявляет QoS, очередь, обменник, привязку и инфраструктуру ретраев
func (c *baseConsumer) setupTopology() error {
	cfg := c.config
	ch := c.channel

	if cfg.PrefetchCount > 0 {
		c.Logger.Debug("Setting QoS", "prefetch_count", cfg.PrefetchCount)
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	c.actualQueueName = cfg.QueueName
	if cfg.DeclareQueue {
		c.Logger.Debug("Declaring queue", "name", cfg.QueueName, "durable", cfg.DurableQueue)
		q, err := ch.QueueDeclare(cfg.QueueName, cfg.DurableQueue, cfg.AutoDeleteQueue, cfg.ExclusiveQueue, false, c.queueArgs())
		if err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", cfg.QueueName, err)
		}
		c.actualQueueName = q.Name
	}

	if cfg.DeclareExchangeForBind {
		c.Logger.Debug("Declaring exchange", "name", cfg.ExchangeNameForBind, "type", cfg.ExchangeTypeForBind)
		err := ch.ExchangeDeclare(cfg.ExchangeNameForBind, cfg.ExchangeTypeForBind, cfg.DurableExchangeForBind, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s' for binding: %w", cfg.ExchangeNameForBind, err)
		}
	}

	if cfg.ExchangeNameForBind != "" {
		c.Logger.Debug("Binding queue to exchange",
			"queue_name", c.actualQueueName,
			"exchange_name", cfg.ExchangeNameForBind,
			"routing_key", cfg.RoutingKeyForBind,
		)
		if err := ch.QueueBind(c.actualQueueName, cfg.RoutingKeyForBind, cfg.ExchangeNameForBind, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue '%s' to exchange '%s': %w", c.actualQueueName, cfg.ExchangeNameForBind, err)
		}
	}

	if !cfg.EnableRetryMechanism {
		c.Logger.Debug("Setup complete", "queue", c.actualQueueName)
		return nil
	}

	if err := ch.ExchangeDeclare(cfg.FinalDLXExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.FinalDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLQ: %w", err)
	}
	if err := ch.QueueBind(cfg.FinalDLQ, cfg.FinalDLQRoutingKey, cfg.FinalDLXExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind final DLQ: %w", err)
	}

	// retry-обменник fanout; wait-очередь по TTL возвращает сообщение в основной обменник
	// с исходным routing key
	if err := ch.ExchangeDeclare(cfg.RetryExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare retry exchange: %w", err)
	}
	_, err := ch.QueueDeclare(cfg.RetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":          int32(cfg.RetryTTL),
		"x-dead-letter-exchange": cfg.ExchangeNameForBind,
	})
	if err != nil {
		return fmt.Errorf("failed to declare retry-wait queue: %w", err)
	}
	if err := ch.QueueBind(cfg.RetryQueue, "", cfg.RetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind retry-wait queue: %w", err)
	}

	c.Logger.Debug("Setup complete with retries",
		"queue", c.actualQueueName,
		"retry_queue", cfg.RetryQueue,
		"final_dlq", cfg.FinalDLQ,
	)
	return nil
}

// deathCount - сколько раз сообщение было отвергнуто в основной очереди (заголовок x-death)
func deathCount(d amqp.Delivery, queueName string) int64 {
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, death := range deaths {
		tbl, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if queue, _ := tbl["queue"].(string); queue != queueName {
			continue
		}
		switch count := tbl["count"].(type) {
		case int64:
			return count
		case int32:
			return int64(count)
		case int:
			return int64(count)
		}
	}
	return 0
}

// IsLastAttempt - true, если при ошибке обработки доставка уйдет в финальный DLX, а не на повтор
func IsLastAttempt(d amqp.Delivery, queueName string, maxRetries int) bool {
	return deathCount(d, queueName) >= int64(maxRetries)
}

// Close ждет активные обработчики и закрывает канал
func (c *baseConsumer) Close() error {
	c.Logger.Debug("Waiting for message handlers to finish...")
	c.wg.Wait()

	var firstErr error
	if c.finalDLX != nil {
		if err := c.finalDLX.Close(); err != nil {
			c.Logger.Error(err, "Error closing final DLX publisher")
			firstErr = err
		}
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.Logger.Error(err, "Error closing channel")
			if firstErr == nil {
				firstErr = err
			}
		}
		c.channel = nil
	}

	c.Logger.Info("Consumer closed")
	return firstErr
}
