package usecases_port

import (
	"context"
	"listing-scraper-service/internal/core/domain"
)

type ProcessScrapeTaskPort interface {
	Execute(ctx context.Context, task domain.ScrapeTask) error
}

type ProcessSearchTaskPort interface {
	Execute(ctx context.Context, task domain.SearchTask) error
}
