package listingscraper

import (
	"strings"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/port"
)

const (
	idealistaTitle        = "span.main-info__title-main"
	idealistaTitleAlt     = "h1"
	idealistaPrice        = "span.info-data-price"
	idealistaPriceAlt     = ".price-features__container .price"
	idealistaLocation     = "span.main-info__title-minor"
	idealistaLocationAlt  = "#headerMap li"
	idealistaDescription  = "div.adCommentsLanguage p"
	idealistaDescAlt      = "div.comment"
	idealistaFeatureItems = "div.details-property_features li, div.info-features span"
	idealistaImages       = "div.main-multimedia img, #main-multimedia img"
)

// превью отдаются с размером в пути: WEB_LISTING -> WEB_DETAIL
var idealistaThumbUpgrade = strings.NewReplacer("WEB_LISTING", "WEB_DETAIL", "w=300", "w=1200", "h=200", "h=900")

// NewIdealistaScraper - адаптер idealista.it
func NewIdealistaScraper(fetcher port.PageFetcherPort) *Scraper {
	return &Scraper{
		site:    constants.SiteIdealista,
		fetcher: fetcher,
		selectors: selectorSet{
			title:       []string{idealistaTitle, idealistaTitleAlt},
			price:       []string{idealistaPrice, idealistaPriceAlt},
			location:    []string{idealistaLocation, idealistaLocationAlt},
			description: []string{idealistaDescription, idealistaDescAlt},

			features: idealistaFeatureItems,
			images:   idealistaImages,

			surfaceLabels: []string{"m²", "superficie"},
			roomLabels:    []string{"locali", "camere"},
			typeLabels:    []string{"tipologia"},
			surfaceUnit:   "m²",
			imageUpgrade:  idealistaThumbUpgrade,
		},
	}
}
