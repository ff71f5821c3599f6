package searchcrawler

import (
	"strconv"
	"strings"
	"time"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
)

const (
	realtorSearchBase = "https://www.realtor.com/realestateandhomes-search/"
	realtorOpenBound  = "na"
	// сайт строже ограничивает частоту запросов
	realtorDelay = 3 * time.Second

	realtorLinkPrimary  = `a[data-testid="card-link"]`
	realtorLinkFallback = `a[href*="/realestateandhomes-detail/"]`
	realtorTotal        = `[data-testid="results-header"]`
	realtorTotalAlt     = "div.result-count"
)

// NewRealtorCrawler - выдача realtor.com, фильтры кодируются сегментами пути.
// Поддерживаются Location, State, PropertyType, BedsMin, BathsMin, PriceMin/Max.
func NewRealtorCrawler(fetcher port.PageFetcherPort, opts ...Option) *Crawler {
	c := &Crawler{
		site:           constants.SearchSiteRealtor,
		fetcher:        fetcher,
		buildURL:       buildRealtorURL,
		linkSelectors:  []string{realtorLinkPrimary, realtorLinkFallback},
		totalSelectors: []string{realtorTotal, realtorTotalAlt},
		delay:          realtorDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func buildRealtorURL(criteria domain.SearchCriteria, page int) string {
	var segments []string

	// "San Francisco", "ca" -> "San-Francisco_CA"
	if city := slugify(criteria.Location); city != "" {
		location := city
		if state := strings.ToUpper(slugify(criteria.State)); state != "" {
			location += "_" + state
		}
		segments = append(segments, location)
	}
	if pt := strings.ToLower(slugify(criteria.PropertyType)); pt != "" {
		segments = append(segments, "type-"+pt)
	}
	if criteria.BedsMin != nil {
		segments = append(segments, "beds-"+strconv.Itoa(*criteria.BedsMin))
	}
	if criteria.BathsMin != nil {
		segments = append(segments, "baths-"+strconv.Itoa(*criteria.BathsMin))
	}
	if criteria.PriceMin != nil || criteria.PriceMax != nil {
		segments = append(segments, "price-"+bound(criteria.PriceMin)+"-"+bound(criteria.PriceMax))
	}
	if page > 1 {
		segments = append(segments, "pg-"+strconv.Itoa(page))
	}

	if len(segments) == 0 {
		return realtorSearchBase
	}
	return realtorSearchBase + strings.Join(segments, "/") + "/"
}

func bound(v *int) string {
	if v == nil {
		return realtorOpenBound
	}
	return strconv.Itoa(*v)
}
