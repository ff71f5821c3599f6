package usecase

import (
	"context"
	"fmt"

	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
)

// SearchListingsUseCase выбирает краулер по имени сайта и обходит выдачу
type SearchListingsUseCase struct {
	crawlers map[string]port.SearchCrawlerPort
	sites    []string
}

// NewSearchListingsUseCase строит неизменяемую таблицу краулеров по имени сайта
func NewSearchListingsUseCase(crawlers ...port.SearchCrawlerPort) *SearchListingsUseCase {
	uc := &SearchListingsUseCase{crawlers: make(map[string]port.SearchCrawlerPort, len(crawlers))}
	for _, c := range crawlers {
		if _, exists := uc.crawlers[c.Site()]; exists {
			continue
		}
		uc.crawlers[c.Site()] = c
		uc.sites = append(uc.sites, c.Site())
	}
	return uc
}

// Sites - имена сайтов с поиском в порядке регистрации
func (uc *SearchListingsUseCase) Sites() []string {
	return append([]string(nil), uc.sites...)
}

func (uc *SearchListingsUseCase) Execute(ctx context.Context, site string, criteria domain.SearchCriteria, maxPages int) (domain.SearchOutcome, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "SearchListings",
		"site":     site,
	})

	crawler, ok := uc.crawlers[site]
	if !ok {
		return domain.SearchOutcome{}, fmt.Errorf("%w: %q (available: %v)", domain.ErrUnknownSearchSite, site, uc.sites)
	}
	if maxPages <= 0 {
		maxPages = domain.DefaultMaxPages
	}

	ucLogger.Info("Starting search", port.Fields{"max_pages": maxPages, "location": criteria.Location})

	outcome, err := crawler.Search(contextkeys.ContextWithLogger(ctx, ucLogger), criteria, maxPages)
	if err != nil {
		ucLogger.Warn("Search interrupted", port.Fields{"error": err.Error(), "urls": len(outcome.URLs)})
		return outcome, fmt.Errorf("search on %s interrupted: %w", site, err)
	}
	if !outcome.OK() {
		ucLogger.Warn("Search failed", port.Fields{"kind": outcome.Failure.Kind, "reason": outcome.Failure.Reason})
	}
	return outcome, nil
}
