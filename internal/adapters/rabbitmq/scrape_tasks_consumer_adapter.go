package rabbitmq

import (
	"context"
	"fmt"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/port"
	usecases_port "listing-scraper-service/internal/core/port/usecases"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_common"
	"listing-scraper-service/pkg/rabbitmq/rabbitmq_consumer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ScrapeTasksConsumerAdapter слушает scrape_tasks и парсит по одному объявлению на сообщение
type ScrapeTasksConsumerAdapter struct {
	consumer *rabbitmq_consumer.DistributingConsumer
	useCase  usecases_port.ProcessScrapeTaskPort
	logger   port.LoggerPort

	lastAttempt lastAttemptFunc
}

var _ port.EventListenerPort = (*ScrapeTasksConsumerAdapter)(nil)

func NewScrapeTasksConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase usecases_port.ProcessScrapeTaskPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*ScrapeTasksConsumerAdapter, error) {
	adapter := &ScrapeTasksConsumerAdapter{
		useCase: useCase,
		logger:  logger.WithFields(port.Fields{"component": "ScrapeTasksConsumerAdapter"}),

		lastAttempt: newLastAttemptFunc(consumerCfg),
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for scrape tasks: %w", err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

func (a *ScrapeTasksConsumerAdapter) messageHandler(d amqp.Delivery) error {
	ctx, cancel, msgLogger := messageContext(d, a.logger)
	defer cancel()

	var dto ScrapeTaskDTO
	if err := decodeEvent(d, constants.EventScrapeTask, &dto); err != nil {
		msgLogger.Error("Rejecting invalid scrape task", err, nil)
		return err
	}

	task := dto.toDomain()
	task.LastAttempt = a.lastAttempt.check(d)
	taskLogger := msgLogger.WithFields(port.Fields{"task_id": task.TaskID.String(), "url": task.URL})
	ctx = contextkeys.ContextWithLogger(ctx, taskLogger)

	taskLogger.Info("Received scrape task", nil)
	if err := a.useCase.Execute(ctx, task); err != nil {
		taskLogger.Error("Scrape task failed with a retryable error", err, nil)
		return err
	}
	taskLogger.Info("Scrape task processed", nil)
	return nil
}

// Start реализует EventListenerPort
func (a *ScrapeTasksConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close реализует EventListenerPort
func (a *ScrapeTasksConsumerAdapter) Close() error {
	return a.consumer.Close()
}
