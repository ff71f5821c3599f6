package usecase

import (
	"context"
	"fmt"

	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
)

// ScrapeListingUseCase выбирает адаптер по домену и парсит одно объявление
type ScrapeListingUseCase struct {
	factory port.ScraperFactoryPort
}

func NewScrapeListingUseCase(factory port.ScraperFactoryPort) *ScrapeListingUseCase {
	return &ScrapeListingUseCase{factory: factory}
}

// Execute возвращает ScrapeOutcome. Неподдерживаемый домен - это Failure, а не ошибка.
func (uc *ScrapeListingUseCase) Execute(ctx context.Context, url string) (domain.ScrapeOutcome, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ScrapeListing",
		"url":      url,
	})

	scraper, ok := uc.factory.GetScraper(url)
	if !ok {
		ucLogger.Info("No adapter for URL", nil)
		return domain.Failed(domain.FailureUnsupported, "",
			fmt.Sprintf("no adapter available for %q; supported sites: %v", url, uc.factory.SupportedDomains())), nil
	}

	ctx = contextkeys.ContextWithLogger(ctx, ucLogger)
	outcome, err := scraper.Scrape(ctx, url)
	if err != nil {
		ucLogger.Error("Scraper failed unexpectedly", err, port.Fields{"site": scraper.Site()})
		return domain.ScrapeOutcome{}, fmt.Errorf("scrape %s: %w", url, err)
	}

	// адаптер не должен отдавать успех без заголовка или цены
	if !outcome.OK() && outcome.Failure == nil {
		missing := outcome.Listing.MissingRequired()
		outcome = domain.Failed(domain.FailureExtraction, scraper.Site(),
			(&domain.ExtractionError{Site: scraper.Site(), Missing: missing}).Error())
	}

	if outcome.OK() {
		ucLogger.Info("Listing scraped", port.Fields{"site": scraper.Site(), "title": outcome.Listing.Title})
	} else {
		ucLogger.Warn("Listing not scraped", port.Fields{
			"site":   scraper.Site(),
			"kind":   outcome.Failure.Kind,
			"reason": outcome.Failure.Reason,
		})
	}
	return outcome, nil
}
