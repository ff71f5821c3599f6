package listingscraper

import (
	"net/url"
	"strings"

	"listing-scraper-service/internal/core/port"
)

type registration struct {
	domain  string
	scraper port.ListingScraperPort
}

// Factory выбирает адаптер по домену URL. Реестр собирается один раз в NewFactory
// и дальше только читается, поэтому Factory безопасна для конкурентного использования.
type Factory struct {
	registry []registration
}

var _ port.ScraperFactoryPort = (*Factory)(nil)

// NewFactory регистрирует все поддерживаемые сайты.
// strictFetcher (увеличенный таймаут) используется для realtor.com.
func NewFactory(fetcher, strictFetcher port.PageFetcherPort) *Factory {
	scrapers := []port.ListingScraperPort{
		NewImmobiliareScraper(fetcher),
		NewIdealistaScraper(fetcher),
		NewCasaScraper(fetcher),
		NewSubitoScraper(fetcher),
		NewRealtorScraper(strictFetcher),
	}

	registry := make([]registration, 0, len(scrapers))
	for _, s := range scrapers {
		registry = append(registry, registration{domain: s.Site(), scraper: s})
	}
	return &Factory{registry: registry}
}

// GetScraper возвращает адаптер для URL. Отсутствие адаптера - нормальный исход, а не ошибка.
func (f *Factory) GetScraper(rawURL string) (port.ListingScraperPort, bool) {
	host := normalizedHost(rawURL)
	if host == "" {
		return nil, false
	}
	for _, r := range f.registry {
		if host == r.domain || strings.HasSuffix(host, "."+r.domain) {
			return r.scraper, true
		}
	}
	return nil, false
}

func (f *Factory) IsSupported(rawURL string) bool {
	_, ok := f.GetScraper(rawURL)
	return ok
}

// SupportedDomains - домены в порядке регистрации
func (f *Factory) SupportedDomains() []string {
	out := make([]string, 0, len(f.registry))
	for _, r := range f.registry {
		out = append(out, r.domain)
	}
	return out
}

// normalizedHost возвращает хост в нижнем регистре без "www." или "" для некорректного URL
func normalizedHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
