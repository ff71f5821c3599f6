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

// SearchTasksConsumerAdapter слушает search_tasks
type SearchTasksConsumerAdapter struct {
	consumer *rabbitmq_consumer.DistributingConsumer
	useCase  usecases_port.ProcessSearchTaskPort
	logger   port.LoggerPort

	lastAttempt lastAttemptFunc
}

var _ port.EventListenerPort = (*SearchTasksConsumerAdapter)(nil)

func NewSearchTasksConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase usecases_port.ProcessSearchTaskPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*SearchTasksConsumerAdapter, error) {
	adapter := &SearchTasksConsumerAdapter{
		useCase: useCase,
		logger:  logger.WithFields(port.Fields{"component": "SearchTasksConsumerAdapter"}),

		lastAttempt: newLastAttemptFunc(consumerCfg),
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for search tasks: %w", err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

func (a *SearchTasksConsumerAdapter) messageHandler(d amqp.Delivery) error {
	ctx, cancel, msgLogger := messageContext(d, a.logger)
	defer cancel()

	var dto SearchTaskDTO
	if err := decodeEvent(d, constants.EventSearchTask, &dto); err != nil {
		msgLogger.Error("Rejecting invalid search task", err, nil)
		return err
	}

	task := dto.toDomain()
	task.LastAttempt = a.lastAttempt.check(d)
	taskLogger := msgLogger.WithFields(port.Fields{"task_id": task.TaskID.String(), "site": task.Site})
	ctx = contextkeys.ContextWithLogger(ctx, taskLogger)

	taskLogger.Info("Received search task", port.Fields{"max_pages": task.MaxPages})
	if err := a.useCase.Execute(ctx, task); err != nil {
		taskLogger.Error("Search task failed with a retryable error", err, nil)
		return err
	}
	taskLogger.Info("Search task processed", nil)
	return nil
}

func (a *SearchTasksConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *SearchTasksConsumerAdapter) Close() error {
	return a.consumer.Close()
}
