package htmldoc

import (
	"net/url"
	"strings"

	"listing-scraper-service/internal/core/domain"

	"github.com/PuerkitoBio/goquery"
)

var placeholderMarkers = []string{"placeholder", "logo", "no-image"}

// ImageCollector собирает URL изображений галереи: без заглушек, без дублей, не больше domain.MaxImages
type ImageCollector struct {
	base    *url.URL
	upgrade *strings.Replacer
	seen    map[string]struct{}
	images  []string
}

// NewImageCollector создает сборщик. upgrade может быть nil - тогда URL превью не меняются.
func NewImageCollector(base *url.URL, upgrade *strings.Replacer) *ImageCollector {
	return &ImageCollector{
		base:    base,
		upgrade: upgrade,
		seen:    make(map[string]struct{}),
	}
}

// Add добавляет URL и сообщает, был ли он принят
func (c *ImageCollector) Add(raw string) bool {
	if c.Full() {
		return false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return false
	}

	lower := strings.ToLower(raw)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	if c.upgrade != nil {
		raw = c.upgrade.Replace(raw)
	}
	abs := AbsoluteURL(c.base, raw)
	if abs == "" {
		return false
	}

	if _, ok := c.seen[abs]; ok {
		return false
	}
	c.seen[abs] = struct{}{}
	c.images = append(c.images, abs)
	return true
}

// FromSelection добавляет изображения из найденных элементов, data-src важнее src
func (c *ImageCollector) FromSelection(sel *goquery.Selection) {
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("data-src", "")
		if strings.TrimSpace(src) == "" {
			src = s.AttrOr("src", "")
		}
		c.Add(src)
		return !c.Full()
	})
}

// Full - достигнут ли лимит
func (c *ImageCollector) Full() bool {
	return len(c.images) >= domain.MaxImages
}

// Images возвращает копию собранного списка
func (c *ImageCollector) Images() []string {
	out := make([]string, len(c.images))
	copy(out, c.images)
	return out
}
