package searchcrawler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"
)

const (
	immobiliareSearchBase = "https://www.immobiliare.it/vendita-case/"
	immobiliareNoLocation = "italia"
	immobiliareDelay      = 2 * time.Second

	immobiliareLinkPrimary  = "a.in-listingCardTitle"
	immobiliareLinkFallback = `li.in-searchLayoutListItem a[href*="/annunci/"]`
	immobiliareTotal        = "div.in-searchList__title"
	immobiliareTotalAlt     = "h1"
)

// NewImmobiliareCrawler - выдача immobiliare.it, фильтры передаются query-параметрами.
// Поддерживаются Location, PriceMin/Max, RoomsMin/Max и PropertyType (id типологии сайта).
func NewImmobiliareCrawler(fetcher port.PageFetcherPort, opts ...Option) *Crawler {
	c := &Crawler{
		site:           constants.SearchSiteImmobiliare,
		fetcher:        fetcher,
		buildURL:       buildImmobiliareURL,
		linkSelectors:  []string{immobiliareLinkPrimary, immobiliareLinkFallback},
		totalSelectors: []string{immobiliareTotal, immobiliareTotalAlt},
		delay:          immobiliareDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func buildImmobiliareURL(criteria domain.SearchCriteria, page int) string {
	city := strings.ToLower(slugify(criteria.Location))
	if city == "" {
		city = immobiliareNoLocation
	}

	query := url.Values{}
	setInt(query, "prezzoMinimo", criteria.PriceMin)
	setInt(query, "prezzoMassimo", criteria.PriceMax)
	setInt(query, "localiMinimo", criteria.RoomsMin)
	setInt(query, "localiMassimo", criteria.RoomsMax)
	if pt := strings.TrimSpace(criteria.PropertyType); pt != "" {
		query.Set("idTipologia", pt)
	}
	if page > 1 {
		query.Set("pag", strconv.Itoa(page))
	}

	u := immobiliareSearchBase + url.PathEscape(city) + "/"
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// setInt добавляет параметр только если критерий задан
func setInt(query url.Values, key string, v *int) {
	if v != nil {
		query.Set(key, strconv.Itoa(*v))
	}
}
