package listingscraper

import (
	"strings"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/port"
)

const (
	subitoTitle        = "h1[class*='AdInfo_title']"
	subitoTitleAlt     = "h1"
	subitoPrice        = "p[class*='AdInfo_price']"
	subitoPriceAlt     = "[class*='price']"
	subitoLocation     = "[class*='AdInfo_locationText']"
	subitoLocationAlt  = "[class*='location']"
	subitoDescription  = "p[class*='AdDescription_description']"
	subitoDescAlt      = "[class*='description']"
	subitoFeatureItems = "ul[class*='feature-list'] li, div[class*='AdParams'] li"
	subitoImages       = "div[class*='Carousel'] img, section[class*='gallery'] img"
)

// CDN subito отдает размер через параметр rule
var subitoThumbUpgrade = strings.NewReplacer("rule=gallery-mobile", "rule=gallery-desktop-2x", "rule=fullscreen-1x", "rule=fullscreen-2x")

// NewSubitoScraper - адаптер subito.it
func NewSubitoScraper(fetcher port.PageFetcherPort) *Scraper {
	return &Scraper{
		site:    constants.SiteSubito,
		fetcher: fetcher,
		selectors: selectorSet{
			title:       []string{subitoTitle, subitoTitleAlt},
			price:       []string{subitoPrice, subitoPriceAlt},
			location:    []string{subitoLocation, subitoLocationAlt},
			description: []string{subitoDescription, subitoDescAlt},

			features: subitoFeatureItems,
			images:   subitoImages,

			surfaceLabels: []string{"superficie", "m²"},
			roomLabels:    []string{"locali", "camere"},
			typeLabels:    []string{"tipologia"},
			surfaceUnit:   "m²",
			imageUpgrade:  subitoThumbUpgrade,
		},
	}
}
