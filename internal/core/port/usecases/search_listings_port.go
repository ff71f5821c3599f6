package usecases_port

import (
	"context"
	"listing-scraper-service/internal/core/domain"
)

type SearchListingsPort interface {
	Execute(ctx context.Context, site string, criteria domain.SearchCriteria, maxPages int) (domain.SearchOutcome, error)
	Sites() []string
}
