package port

import (
	"context"
	"listing-scraper-service/internal/core/domain"
)

// SearchCrawlerPort обходит страницы выдачи и собирает ссылки на объявления
type SearchCrawlerPort interface {
	Site() string
	Search(ctx context.Context, criteria domain.SearchCriteria, maxPages int) (domain.SearchOutcome, error)
}
