package listingscraper

import (
	"strings"

	"listing-scraper-service/internal/adapters/htmldoc"
	"listing-scraper-service/internal/constants"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"

	"github.com/PuerkitoBio/goquery"
)

// Селекторы realtor.com. Разметка меняется часто, поэтому сначала пробуем JSON-LD (см. jsonld.go).
const (
	realtorTitle        = "h1[data-testid='address-line-1']"
	realtorTitleAlt     = "h1"
	realtorPrice        = "[data-testid='list-price']"
	realtorPriceAlt     = "div.price-section .price"
	realtorLocation     = "[data-testid='address-line-2']"
	realtorLocationAlt  = "[data-testid='address']"
	realtorDescription  = "[data-testid='romance-paragraph']"
	realtorDescAlt      = "div.desc-text"
	realtorFeatureItems = "[data-testid='property-details'] li, ul.property-meta li"
	realtorImages       = "[data-testid='hero-image'] img, div.gallery img"
	realtorPropertyType = "[data-testid='property-type-value']"

	realtorBeds  = "[data-testid='property-meta-beds']"
	realtorBaths = "[data-testid='property-meta-baths']"
	realtorSqft  = "[data-testid='property-meta-sqft']"
)

// rdcpix: суффикс размера превью заменяем на размер детальной страницы
var realtorThumbUpgrade = strings.NewReplacer("-w480_h360", "-w1024_h768", "s.jpg?", "od.jpg?")

// NewRealtorScraper - адаптер realtor.com (сайт с самой строгой защитой, используется загрузчик с увеличенным таймаутом)
func NewRealtorScraper(fetcher port.PageFetcherPort) *Scraper {
	return &Scraper{
		site:    constants.SiteRealtor,
		fetcher: fetcher,
		selectors: selectorSet{
			title:        []string{realtorTitle, realtorTitleAlt},
			price:        []string{realtorPrice, realtorPriceAlt},
			location:     []string{realtorLocation, realtorLocationAlt},
			description:  []string{realtorDescription, realtorDescAlt},
			propertyType: []string{realtorPropertyType},

			features: realtorFeatureItems,
			images:   realtorImages,

			surfaceLabels: []string{"sqft", "sq ft"},
			typeLabels:    []string{"property type"},
			surfaceUnit:   "sqft",
			imageUpgrade:  realtorThumbUpgrade,
		},
		structured: extractJSONLD,
		finish:     finishRealtor,
	}
}

// finishRealtor собирает "3 bd, 2 ba" из блока метаданных, если общий разбор не нашел комнаты
func finishRealtor(doc *goquery.Document, features []string, listing *domain.CanonicalListing) {
	root := doc.Selection

	beds := htmldoc.ExtractNumber(htmldoc.FirstText(root, realtorBeds))
	if beds == "" {
		beds = htmldoc.ExtractNumber(htmldoc.FilterByLabel(features, "bed"))
	}
	baths := htmldoc.ExtractNumber(htmldoc.FirstText(root, realtorBaths))
	if baths == "" {
		baths = htmldoc.ExtractNumber(htmldoc.FilterByLabel(features, "bath"))
	}
	if rooms := bedsBaths(beds, baths); rooms != "" {
		listing.Rooms = rooms
	}

	if listing.Surface == "" {
		if n := htmldoc.ExtractNumber(htmldoc.FirstText(root, realtorSqft)); n != "" {
			listing.Surface = n + " sqft"
		}
	}
}

// bedsBaths форматирует количество спален и ванных
func bedsBaths(beds, baths string) string {
	var parts []string
	if beds != "" {
		parts = append(parts, beds+" bd")
	}
	if baths != "" {
		parts = append(parts, baths+" ba")
	}
	return strings.Join(parts, ", ")
}
