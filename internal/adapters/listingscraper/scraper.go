// Package listingscraper содержит адаптеры сайтов объявлений и фабрику, выбирающую адаптер по домену.
package listingscraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"listing-scraper-service/internal/adapters/htmldoc"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"

	"github.com/PuerkitoBio/goquery"
)

// selectorSet - селекторы и подписи одного сайта. Сами строки живут в именованных константах файла сайта.
type selectorSet struct {
	title        []string
	price        []string
	location     []string
	description  []string
	propertyType []string

	features string // элементы списка характеристик
	images   string // изображения галереи

	surfaceLabels []string
	roomLabels    []string
	typeLabels    []string
	surfaceUnit   string

	// замена превью на изображение большего размера, может быть nil
	imageUpgrade *strings.Replacer
}

// structuredExtractor пытается собрать запись из встроенных структурированных данных.
// false означает "данных нет или они неполные", тогда работают селекторы.
type structuredExtractor func(ctx context.Context, doc *goquery.Document, base *url.URL, upgrade *strings.Replacer) (domain.CanonicalListing, bool)

// finisher дополняет запись тем, что не укладывается в общую схему селекторов
type finisher func(doc *goquery.Document, features []string, listing *domain.CanonicalListing)

// Scraper - адаптер одного сайта. Алгоритм общий, различаются только селекторы и хуки.
type Scraper struct {
	site       string
	fetcher    port.PageFetcherPort
	selectors  selectorSet
	structured structuredExtractor
	finish     finisher
}

var _ port.ListingScraperPort = (*Scraper)(nil)

func (s *Scraper) Site() string {
	return s.site
}

// Scrape загружает страницу объявления и возвращает каноническую запись или типизированную неудачу.
// error возвращается только если HTML не удалось разобрать вовсе.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (domain.ScrapeOutcome, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "ListingScraper",
		"site":      s.site,
	})

	body, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if domain.IsBlocked(err) {
			logger.Warn("Site blocked the request", port.Fields{"url": rawURL})
			return domain.Failed(domain.FailureBlocked, s.site, domain.BlockedMessage(s.site)), nil
		}
		logger.Error("Failed to fetch listing page", err, port.Fields{"url": rawURL})
		return domain.Failed(domain.FailureFetch, s.site,
			fmt.Sprintf("%s: could not load the listing page: %v", s.site, err)), nil
	}

	doc, err := htmldoc.Parse(body)
	if err != nil {
		return domain.ScrapeOutcome{}, fmt.Errorf("%s adapter: %w", s.site, err)
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		base = nil
	}

	var listing domain.CanonicalListing
	fromStructured := false
	if s.structured != nil {
		listing, fromStructured = s.structured(ctx, doc, base, s.selectors.imageUpgrade)
	}
	if !fromStructured {
		listing = s.extract(doc, base)
	}
	listing.Site = s.site
	listing.SourceURL = rawURL

	if missing := listing.MissingRequired(); len(missing) > 0 {
		extractionErr := &domain.ExtractionError{Site: s.site, Missing: missing}
		logger.Warn("Required fields not found", port.Fields{"url": rawURL, "missing": missing})
		return domain.Failed(domain.FailureExtraction, s.site, extractionErr.Error()), nil
	}

	logger.Info("Listing scraped", port.Fields{
		"url":        rawURL,
		"structured": fromStructured,
		"images":     len(listing.Images),
	})
	return domain.Succeeded(&listing), nil
}

// extract - разбор по селекторам
func (s *Scraper) extract(doc *goquery.Document, base *url.URL) domain.CanonicalListing {
	sel := s.selectors
	root := doc.Selection

	listing := domain.CanonicalListing{
		Title:          htmldoc.FirstText(root, sel.title...),
		Price:          htmldoc.FirstText(root, sel.price...),
		Location:       htmldoc.FirstText(root, sel.location...),
		DescriptionRaw: htmldoc.FirstText(root, sel.description...),
	}

	var features []string
	if sel.features != "" {
		features = htmldoc.Texts(root, sel.features)
	}
	listing.Features = features

	// характеристики сопоставляем по подписи: классы элементов списка меняются чаще всего
	if item := htmldoc.FilterByLabel(features, sel.surfaceLabels...); item != "" {
		if n := htmldoc.ExtractNumber(item); n != "" {
			listing.Surface = n + " " + sel.surfaceUnit
		}
	}
	if item := htmldoc.FilterByLabel(features, sel.roomLabels...); item != "" {
		listing.Rooms = htmldoc.ExtractNumber(item)
		if listing.Rooms == "" {
			listing.Rooms = htmldoc.ValueAfterLabel(item)
		}
	}

	propertyType := htmldoc.FirstText(root, sel.propertyType...)
	if propertyType == "" {
		if item := htmldoc.FilterByLabel(features, sel.typeLabels...); item != "" {
			propertyType = htmldoc.ValueAfterLabel(item)
		}
	}
	if propertyType != "" {
		listing.PropertyType = &propertyType
	}

	if sel.images != "" {
		images := htmldoc.NewImageCollector(base, sel.imageUpgrade)
		images.FromSelection(root.Find(sel.images))
		listing.Images = images.Images()
	}

	if s.finish != nil {
		s.finish(doc, features, &listing)
	}
	return listing
}
