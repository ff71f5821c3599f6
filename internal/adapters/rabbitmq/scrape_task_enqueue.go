package rabbitmq

import (
	"context"
	"fmt"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
)

// ScrapeTaskQueueAdapter ставит ссылки из выдачи в очередь scrape_tasks
type ScrapeTaskQueueAdapter struct {
	producer   Publisher
	routingKey string
}

var _ port.ScrapeTaskQueuePort = (*ScrapeTaskQueueAdapter)(nil)

func NewScrapeTaskQueueAdapter(producer Publisher, routingKey string) (*ScrapeTaskQueueAdapter, error) {
	if err := checkProducer(producer, routingKey); err != nil {
		return nil, err
	}
	return &ScrapeTaskQueueAdapter{producer: producer, routingKey: routingKey}, nil
}

// Enqueue публикует ScrapeTaskEvent
func (a *ScrapeTaskQueueAdapter) Enqueue(ctx context.Context, task domain.ScrapeTask) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "ScrapeTaskQueueAdapter",
		"routing_key": a.routingKey,
		"url":         task.URL,
	})

	dto := ScrapeTaskDTO{TaskID: task.TaskID, URL: task.URL}
	if err := publishEvent(ctx, a.producer, a.routingKey, constants.EventScrapeTask, dto); err != nil {
		logger.Error("Failed to publish scrape task", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to enqueue %s: %w", task.URL, err)
	}

	logger.Debug("Scrape task enqueued", nil)
	return nil
}
