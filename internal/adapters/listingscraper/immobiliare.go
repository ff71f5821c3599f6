package listingscraper

import (
	"strings"

	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/port"
)

// Селекторы карточки immobiliare.it
const (
	immobiliareTitle        = "h1.re-title__title"
	immobiliareTitleAlt     = "h1"
	immobiliarePrice        = ".re-overview__price"
	immobiliarePriceAlt     = "[class*='price'] span"
	immobiliareLocation     = ".re-title__location"
	immobiliareLocationAlt  = "[class*='location']"
	immobiliareDescription  = ".re-description__text"
	immobiliareDescAlt      = "[class*='description'] div"
	immobiliareFeatureItems = "dl.re-featuresItem, li.re-featuresItem, .re-mainFeatures__item"
	immobiliareImages       = ".re-gallery img, .nd-slideshow img"
	immobiliareTypology     = "[data-testid='typology']"
)

// превью "xxs-c.jpg" -> полноразмерное "xxl.jpg"
var immobiliareThumbUpgrade = strings.NewReplacer("/thumb/", "/large/", "xxs-c.jpg", "xxl.jpg")

// NewImmobiliareScraper - адаптер immobiliare.it
func NewImmobiliareScraper(fetcher port.PageFetcherPort) *Scraper {
	return &Scraper{
		site:    constants.SiteImmobiliare,
		fetcher: fetcher,
		selectors: selectorSet{
			title:        []string{immobiliareTitle, immobiliareTitleAlt},
			price:        []string{immobiliarePrice, immobiliarePriceAlt},
			location:     []string{immobiliareLocation, immobiliareLocationAlt},
			description:  []string{immobiliareDescription, immobiliareDescAlt},
			propertyType: []string{immobiliareTypology},

			features: immobiliareFeatureItems,
			images:   immobiliareImages,

			surfaceLabels: []string{"superficie", "m²"},
			roomLabels:    []string{"locali"},
			typeLabels:    []string{"tipologia"},
			surfaceUnit:   "m²",
			imageUpgrade:  immobiliareThumbUpgrade,
		},
	}
}
