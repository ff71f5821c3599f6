package listingscraper

import (
	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/port"
)

const (
	casaTitle        = "h1.ls-title"
	casaTitleAlt     = "h1"
	casaPrice        = "li.feature-price"
	casaPriceAlt     = "[class*='price']"
	casaLocation     = "p.location"
	casaDescription  = "div.description-text"
	casaFeatureItems = "ul.chips li, ul.features li"
	casaImages       = "div.gallery img, figure.media img"
	casaPropertyType = "span.typology"
)

// NewCasaScraper - адаптер casa.it, превью здесь уже полного размера
func NewCasaScraper(fetcher port.PageFetcherPort) *Scraper {
	return &Scraper{
		site:    constants.SiteCasa,
		fetcher: fetcher,
		selectors: selectorSet{
			title:        []string{casaTitle, casaTitleAlt},
			price:        []string{casaPrice, casaPriceAlt},
			location:     []string{casaLocation},
			description:  []string{casaDescription},
			propertyType: []string{casaPropertyType},

			features: casaFeatureItems,
			images:   casaImages,

			surfaceLabels: []string{"m²", "mq"},
			roomLabels:    []string{"locali", "vani"},
			typeLabels:    []string{"tipologia"},
			surfaceUnit:   "m²",
		},
	}
}
