package rabbitmq

import (
	"context"
	"fmt"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"

	"github.com/google/uuid"
)

// SearchReporterAdapter публикует SearchCompletedEvent
type SearchReporterAdapter struct {
	producer   Publisher
	routingKey string
}

var _ port.SearchReporterPort = (*SearchReporterAdapter)(nil)

func NewSearchReporterAdapter(producer Publisher, routingKey string) (*SearchReporterAdapter, error) {
	if err := checkProducer(producer, routingKey); err != nil {
		return nil, err
	}
	return &SearchReporterAdapter{producer: producer, routingKey: routingKey}, nil
}

func (a *SearchReporterAdapter) ReportSearch(ctx context.Context, taskID uuid.UUID, outcome domain.SearchOutcome) error {
	event := newSearchCompletedEvent(taskID, outcome)
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "SearchReporterAdapter",
		"routing_key": a.routingKey,
		"status":      event.Status,
	})

	logger.Info("Publishing search report", port.Fields{"urls": len(event.URLs)})
	if err := publishEvent(ctx, a.producer, a.routingKey, constants.EventSearchCompleted, event); err != nil {
		logger.Error("Failed to publish search report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish report for task %s: %w", taskID, err)
	}
	return nil
}
