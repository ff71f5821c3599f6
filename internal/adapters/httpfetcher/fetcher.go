package httpfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"listing-scraper-service/internal/contextkeys"
	"listing-scraper-service/internal/core/domain"
	"listing-scraper-service/internal/core/port"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// Значения по умолчанию для загрузки страниц
const (
	DefaultTimeout      = 15 * time.Second
	StrictTimeout       = 20 * time.Second // для медленного сайта со строгой защитой
	DefaultMaxAttempts  = 3
	DefaultBaseBackoff  = time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultAccept       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	defaultAcceptLang   = "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7"
	defaultAcceptEncode = "gzip" // colly распаковывает только gzip
)

// Config - параметры загрузчика
type Config struct {
	Timeout      time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxRedirects int
	UserAgent    string

	// RandomUserAgent подставляет случайный User-Agent реального браузера на каждый запрос
	RandomUserAgent bool
}

// DefaultConfig - 15 секунд на попытку, 3 попытки, пауза 1s/2s
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		BaseBackoff:  DefaultBaseBackoff,
		MaxRedirects: DefaultMaxRedirects,
		UserAgent:    DefaultUserAgent,
	}
}

// StrictConfig - то же самое, но с увеличенным таймаутом
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = StrictTimeout
	return cfg
}

// Fetcher выполняет GET с заголовками браузера, таймаутом и ретраями с экспоненциальной паузой
type Fetcher struct {
	// родительский коллектор, от него клонируется коллектор на каждую попытку
	collector *colly.Collector
	cfg       Config
}

// New создает загрузчик
func New(cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff < 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	// ParseHTTPErrorResponse: иначе colly сам превращает любой статус >= 203 в ошибку OnError,
	// а статусы классифицируются в одном месте, в fetchOnce
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(cfg.Timeout)

	maxRedirects := cfg.MaxRedirects
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	return &Fetcher{collector: c, cfg: cfg}
}

// Config возвращает действующую конфигурацию
func (f *Fetcher) Config() Config {
	return f.cfg
}

// Fetch загружает страницу. После исчерпания попыток возвращает *domain.FetchError,
// при 403 - сразу *domain.BlockedError (повторять заблокированный запрос бессмысленно).
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "Fetcher"})

	var lastErr error
	lastStatus := 0
	attempt := 0

	for attempt < f.cfg.MaxAttempts {
		attempt++

		body, status, err := f.fetchOnce(ctx, url)
		if err == nil {
			logger.Debug("Page fetched", port.Fields{"url": url, "attempt": attempt, "bytes": len(body)})
			return body, nil
		}

		lastErr, lastStatus = err, status

		if status == http.StatusForbidden {
			logger.Warn("Request blocked by site", port.Fields{"url": url, "attempt": attempt})
			return nil, &domain.BlockedError{URL: url, StatusCode: status}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.FetchError{URL: url, Attempts: attempt, StatusCode: status, Err: ctxErr}
		}

		logger.Warn("Fetch attempt failed", port.Fields{
			"url":     url,
			"attempt": attempt,
			"status":  status,
			"error":   err.Error(),
		})

		if attempt < f.cfg.MaxAttempts {
			if waitErr := sleepCtx(ctx, backoff(f.cfg.BaseBackoff, attempt)); waitErr != nil {
				return nil, &domain.FetchError{URL: url, Attempts: attempt, StatusCode: status, Err: waitErr}
			}
		}
	}

	return nil, &domain.FetchError{URL: url, Attempts: attempt, StatusCode: lastStatus, Err: lastErr}
}

// fetchOnce - одна попытка на свежем клоне коллектора
func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, int, error) {
	// клон не наследует колбэки родителя, поэтому расширения подключаем здесь
	collector := f.collector.Clone()
	collector.Context = ctx
	if f.cfg.RandomUserAgent {
		extensions.RandomUserAgent(collector)
	}

	var body []byte
	var status int
	var responseErr error

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", defaultAccept)
		r.Headers.Set("Accept-Language", defaultAcceptLang)
		r.Headers.Set("Accept-Encoding", defaultAcceptEncode)
		r.Headers.Set("Connection", "keep-alive")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	// только транспортные ошибки: таймаут, обрыв, лишние редиректы
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		responseErr = err
	})

	visitErr := collector.Visit(url)
	collector.Wait()

	if responseErr != nil {
		if status != 0 {
			return nil, status, fmt.Errorf("status %d: %w", status, responseErr)
		}
		return nil, status, responseErr
	}
	if visitErr != nil {
		return nil, status, visitErr
	}
	if status < 200 || status > 299 {
		return nil, status, fmt.Errorf("unexpected status %d", status)
	}
	return body, status, nil
}

// backoff - 1x, 2x, 4x базовой паузы для попыток 1, 2, 3
func backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
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
