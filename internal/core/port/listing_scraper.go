package port

import (
	"context"
	"listing-scraper-service/internal/core/domain"
)

// ListingScraperPort - адаптер одного сайта: превращает URL объявления в каноническую запись.
// Ожидаемые неудачи (нет полей, блокировка) возвращаются в ScrapeOutcome,
// error - только для непредвиденных сбоев разбора.
type ListingScraperPort interface {
	Site() string
	Scrape(ctx context.Context, url string) (domain.ScrapeOutcome, error)
}

// ScraperFactoryPort выбирает адаптер по домену URL
type ScraperFactoryPort interface {
	GetScraper(rawURL string) (ListingScraperPort, bool)
	IsSupported(rawURL string) bool
	SupportedDomains() []string
}
