package usecases_port

import (
	"context"
	"listing-scraper-service/internal/core/domain"
)

type ScrapeListingPort interface {
	Execute(ctx context.Context, url string) (domain.ScrapeOutcome, error)
}
