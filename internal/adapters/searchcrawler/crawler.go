// Package searchcrawler обходит постраничную поисковую выдачу сайтов и собирает ссылки на объявления.
// Ссылки дальше парсятся по одной через фабрику адаптеров; сам краулер адаптеры не вызывает.
package searchcrawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"listing-scraper-service/internal/adapters/htmldoc"
	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"

	"github.com/PuerkitoBio/goquery"
)

// URLBuilder строит адрес страницы выдачи. Чистая функция: одинаковые аргументы - одинаковый URL.
type URLBuilder func(criteria domain.SearchCriteria, page int) string

// Crawler - общий цикл обхода страниц, параметризованный описанием сайта
type Crawler struct {
	site    string
	fetcher port.PageFetcherPort

	buildURL       URLBuilder
	linkSelectors  []string // основной набор, затем запасной
	totalSelectors []string
	delay          time.Duration
}

var _ port.SearchCrawlerPort = (*Crawler)(nil)

// Option настраивает краулер
type Option func(*Crawler)

// WithDelay переопределяет паузу между страницами
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) { c.delay = d }
}

func (c *Crawler) Site() string {
	return c.site
}

// Delay - пауза между страницами
func (c *Crawler) Delay() time.Duration {
	return c.delay
}

// BuildURL возвращает адрес страницы page для criteria
func (c *Crawler) BuildURL(criteria domain.SearchCriteria, page int) string {
	return c.buildURL(criteria, page)
}

// Search обходит страницы 1..maxPages по порядку.
// Неудача первой страницы - Failure, неудача следующих - успех с уже собранными ссылками.
// При отмене ctx возвращается собранное к этому моменту и ошибка контекста.
func (c *Crawler) Search(ctx context.Context, criteria domain.SearchCriteria, maxPages int) (domain.SearchOutcome, error) {
	if maxPages <= 0 {
		maxPages = domain.DefaultMaxPages
	}
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "SearchCrawler",
		"site":      c.site,
	})

	outcome := domain.SearchOutcome{Site: c.site}
	seen := make(map[string]struct{})
	var urls []string

	for page := 1; page <= maxPages; page++ {
		pageURL := c.buildURL(criteria, page)
		pageLogger := logger.WithFields(port.Fields{"page": page, "url": pageURL})

		doc, base, err := c.load(ctx, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				outcome.URLs = dedupe(urls)
				return outcome, ctxErr
			}
			if page == 1 {
				pageLogger.Error("First results page failed", err, nil)
				return c.failure(err), nil
			}
			pageLogger.Warn("Results page failed, returning partial results", port.Fields{"error": err.Error()})
			break
		}
		outcome.PagesVisited = page

		if page == 1 {
			outcome.TotalFound = c.totalFound(doc)
		}

		added := c.collectLinks(doc, base, seen, &urls)
		pageLogger.Debug("Results page processed", port.Fields{"new_urls": added})

		if added == 0 {
			if page == 1 {
				pageLogger.Warn("No listing links on the first results page", nil)
				return domain.SearchOutcome{
					Site:         c.site,
					PagesVisited: 1,
					Failure: &domain.Failure{
						Kind:   domain.FailureExtraction,
						Site:   c.site,
						Reason: fmt.Sprintf("%s: no listing URLs found on the results page", c.site),
					},
				}, nil
			}
			break
		}

		if page < maxPages {
			if err := sleepCtx(ctx, c.delay); err != nil {
				outcome.URLs = dedupe(urls)
				return outcome, err
			}
		}
	}

	outcome.URLs = dedupe(urls)
	logger.Info("Search finished", port.Fields{
		"urls":          len(outcome.URLs),
		"pages_visited": outcome.PagesVisited,
	})
	return outcome, nil
}

func (c *Crawler) load(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := htmldoc.Parse(body)
	if err != nil {
		return nil, nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: bad results page url: %w", c.site, err)
	}
	return doc, base, nil
}

func (c *Crawler) failure(err error) domain.SearchOutcome {
	f := &domain.Failure{Kind: domain.FailureFetch, Site: c.site}
	if domain.IsBlocked(err) {
		f.Kind = domain.FailureBlocked
		f.Reason = domain.BlockedMessage(c.site)
	} else {
		f.Reason = fmt.Sprintf("%s: could not load search results: %v", c.site, err)
	}
	return domain.SearchOutcome{Site: c.site, Failure: f}
}

// totalFound - первое число в элементе со счетчиком результатов, без разделителей тысяч
func (c *Crawler) totalFound(doc *goquery.Document) *int {
	for _, selector := range c.totalSelectors {
		text := htmldoc.FirstText(doc.Selection, selector)
		digits := strings.NewReplacer(".", "", ",", "").Replace(htmldoc.ExtractNumber(text))
		if digits == "" {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil {
			return &n
		}
	}
	return nil
}

// collectLinks добавляет новые ссылки страницы в urls и возвращает их количество.
// Запасной селектор используется, только если основной ничего не нашел.
func (c *Crawler) collectLinks(doc *goquery.Document, base *url.URL, seen map[string]struct{}, urls *[]string) int {
	added := 0
	for _, selector := range c.linkSelectors {
		matched := false
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			link := normalizeLink(base, s.AttrOr("href", ""))
			if link == "" {
				return
			}
			matched = true
			if _, ok := seen[link]; ok {
				return
			}
			seen[link] = struct{}{}
			*urls = append(*urls, link)
			added++
		})
		if matched {
			break
		}
	}
	return added
}

// normalizeLink приводит ссылку к абсолютному http(s) URL без query и фрагмента
func normalizeLink(base *url.URL, href string) string {
	abs := htmldoc.AbsoluteURL(base, href)
	if abs == "" {
		return ""
	}
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return htmldoc.StripQuery(abs)
}

// dedupe - финальный проход, порядок первого появления сохраняется
func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// sleepCtx ждет d или отмены контекста
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
