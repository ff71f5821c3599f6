package port

import (
	"context"
	"listing-scraper-service/internal/core/domain"

	"github.com/google/uuid"
)

// ScrapeTaskQueuePort ставит URL объявления в очередь на парсинг
type ScrapeTaskQueuePort interface {
	Enqueue(ctx context.Context, task domain.ScrapeTask) error
}

// ListingResultsQueuePort публикует результат парсинга одного объявления
type ListingResultsQueuePort interface {
	Publish(ctx context.Context, taskID uuid.UUID, url string, outcome domain.ScrapeOutcome) error
}

// SearchReporterPort публикует итог обхода выдачи
type SearchReporterPort interface {
	ReportSearch(ctx context.Context, taskID uuid.UUID, outcome domain.SearchOutcome) error
}
