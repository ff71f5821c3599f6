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

// ListingResultsAdapter публикует ListingScrapedEvent
type ListingResultsAdapter struct {
	producer   Publisher
	routingKey string
}

var _ port.ListingResultsQueuePort = (*ListingResultsAdapter)(nil)

func NewListingResultsAdapter(producer Publisher, routingKey string) (*ListingResultsAdapter, error) {
	if err := checkProducer(producer, routingKey); err != nil {
		return nil, err
	}
	return &ListingResultsAdapter{producer: producer, routingKey: routingKey}, nil
}

func (a *ListingResultsAdapter) Publish(ctx context.Context, taskID uuid.UUID, url string, outcome domain.ScrapeOutcome) error {
	event := newListingScrapedEvent(taskID, url, outcome)
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "ListingResultsAdapter",
		"routing_key": a.routingKey,
		"status":      event.Status,
	})

	if err := publishEvent(ctx, a.producer, a.routingKey, constants.EventListingScraped, event); err != nil {
		logger.Error("Failed to publish listing result", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish result for %s: %w", url, err)
	}

	logger.Info("Listing result published", nil)
	return nil
}
