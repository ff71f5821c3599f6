package listingscraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"listing-scraper-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher отдает заранее заготовленный HTML или ошибку
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, &domain.FetchError{URL: url, Attempts: 3, Err: errors.New("not found")}
	}
	return []byte(page), nil
}

func servePage(url, html string) *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{url: html}}
}

const immobiliareURL = "https://www.immobiliare.it/annunci/94030211/"

const immobiliarePage = `<html><body>
<h1 class="re-title__title">Appartamento Via Roma 15</h1>
<div class="re-overview__price"><span>€ 250.000</span></div>
<span class="re-title__location">Milano,   Brera</span>
<ul>
  <li class="re-featuresItem">Superficie: 120 m²</li>
  <li class="re-featuresItem">Locali: 4</li>
  <li class="re-featuresItem">Tipologia: Appartamento</li>
</ul>
<div class="re-description__text">Luminoso
   appartamento ristrutturato</div>
<div class="re-gallery">
  <img data-src="https://pwm.im-cdn.it/image/1/xxs-c.jpg" src="/static/placeholder.gif">
  <img src="https://pwm.im-cdn.it/image/2/xxs-c.jpg">
  <img src="https://pwm.im-cdn.it/image/2/xxl.jpg">
  <img src="/static/logo.png">
</div>
</body></html>`

func TestScrape_ListingWithTitleAndPrice(t *testing.T) {
	scraper := NewImmobiliareScraper(servePage(immobiliareURL, immobiliarePage))

	outcome, err := scraper.Scrape(context.Background(), immobiliareURL)
	require.NoError(t, err)
	require.True(t, outcome.OK(), "failure: %+v", outcome.Failure)

	l := outcome.Listing
	assert.Equal(t, "Appartamento Via Roma 15", l.Title)
	assert.Equal(t, "€ 250.000", l.Price)
	assert.Equal(t, "Milano, Brera", l.Location)
	assert.Equal(t, "120 m²", l.Surface)
	assert.Equal(t, "4", l.Rooms)
	assert.Equal(t, "Luminoso appartamento ristrutturato", l.DescriptionRaw)
	assert.Equal(t, []string{"Superficie: 120 m²", "Locali: 4", "Tipologia: Appartamento"}, l.Features)
	require.NotNil(t, l.PropertyType)
	assert.Equal(t, "Appartamento", *l.PropertyType)
	assert.Equal(t, []string{
		"https://pwm.im-cdn.it/image/1/xxl.jpg",
		"https://pwm.im-cdn.it/image/2/xxl.jpg",
	}, l.Images)
	assert.Equal(t, "immobiliare.it", l.Site)
	assert.Equal(t, immobiliareURL, l.SourceURL)
}

func TestScrape_NonBreakingSpacesAreNormalised(t *testing.T) {
	page := strings.NewReplacer(
		`<h1 class="re-title__title">Appartamento Via Roma 15</h1>`,
		`<h1 class="re-title__title">Appartamento&nbsp; Via Roma&nbsp;15</h1>`,
		`<span>€ 250.000</span>`,
		`<span>€&nbsp;250.000</span>`,
	).Replace(immobiliarePage)
	scraper := NewImmobiliareScraper(servePage(immobiliareURL, page))

	outcome, err := scraper.Scrape(context.Background(), immobiliareURL)
	require.NoError(t, err)
	require.True(t, outcome.OK(), "failure: %+v", outcome.Failure)
	assert.Equal(t, "Appartamento Via Roma 15", outcome.Listing.Title)
	assert.Equal(t, "€ 250.000", outcome.Listing.Price)
}

func TestScrape_MissingPriceIsExtractionFailure(t *testing.T) {
	page := strings.Replace(immobiliarePage,
		`<div class="re-overview__price"><span>€ 250.000</span></div>`, "", 1)
	scraper := NewImmobiliareScraper(servePage(immobiliareURL, page))

	outcome, err := scraper.Scrape(context.Background(), immobiliareURL)
	require.NoError(t, err)
	require.False(t, outcome.OK())
	assert.Nil(t, outcome.Listing)
	assert.Equal(t, domain.FailureExtraction, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Reason, "price")
	assert.Contains(t, outcome.Failure.Reason, "immobiliare.it")
	assert.NotContains(t, outcome.Failure.Reason, "title")
}

func TestScrape_BlockedFetchHasActionableMessage(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		immobiliareURL: &domain.BlockedError{URL: immobiliareURL, StatusCode: 403},
	}}

	outcome, err := NewImmobiliareScraper(fetcher).Scrape(context.Background(), immobiliareURL)
	require.NoError(t, err)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.FailureBlocked, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Reason, "temporarily blocked, try later or use manual input")
	assert.True(t, outcome.Failure.Retryable())
}

func TestScrape_TransportFailureIsFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		immobiliareURL: &domain.FetchError{URL: immobiliareURL, Attempts: 3, Err: errors.New("connection reset")},
	}}

	outcome, err := NewImmobiliareScraper(fetcher).Scrape(context.Background(), immobiliareURL)
	require.NoError(t, err)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.FailureFetch, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Reason, "3 attempt")
	assert.Contains(t, outcome.Failure.Reason, "connection reset")
	assert.NotContains(t, outcome.Failure.Reason, "blocked")
}

const casaURL = "https://www.casa.it/immobili/47300111/"

func TestScrape_CasaLabelMatching(t *testing.T) {
	page := `<html><body>
<h1 class="ls-title">Trilocale in vendita</h1>
<ul><li class="feature-price">€ 189.000</li></ul>
<p class="location">Torino, Crocetta</p>
<span class="typology">Attico</span>
<ul class="chips"><li>3 vani</li><li>85 m²</li><li>2 bagni</li></ul>
</body></html>`

	outcome, err := NewCasaScraper(servePage(casaURL, page)).Scrape(context.Background(), casaURL)
	require.NoError(t, err)
	require.True(t, outcome.OK(), "failure: %+v", outcome.Failure)

	assert.Equal(t, "85 m²", outcome.Listing.Surface)
	assert.Equal(t, "3", outcome.Listing.Rooms)
	require.NotNil(t, outcome.Listing.PropertyType)
	assert.Equal(t, "Attico", *outcome.Listing.PropertyType)
	assert.Empty(t, outcome.Listing.Images)
}

// все пять адаптеров на одной странице с огромной галереей
const galleryURL = "https://www.example.test/listing/1/"

func galleryPage() string {
	var b strings.Builder
	b.WriteString(`<html><body><h1>Casa</h1>
<span class="re-overview__price">€ 1</span>
<span class="info-data-price">€ 1</span>
<ul><li class="feature-price">€ 1</li></ul>
<p class="AdInfo_price__x1">€ 1</p>
<div data-testid="list-price">$1</div>
<div class="re-gallery gallery main-multimedia Carousel_wrap" data-testid="hero-image">`)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `<img src="/photos/%d.jpg">`, i%13)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func TestScrape_ImagesAreUniqueAndCapped(t *testing.T) {
	fetcher := servePage(galleryURL, galleryPage())
	scrapers := []*Scraper{
		NewImmobiliareScraper(fetcher),
		NewIdealistaScraper(fetcher),
		NewCasaScraper(fetcher),
		NewSubitoScraper(fetcher),
		NewRealtorScraper(fetcher),
	}

	for _, s := range scrapers {
		t.Run(s.Site(), func(t *testing.T) {
			outcome, err := s.Scrape(context.Background(), galleryURL)
			require.NoError(t, err)
			require.True(t, outcome.OK(), "failure: %+v", outcome.Failure)

			images := outcome.Listing.Images
			assert.Len(t, images, domain.MaxImages)
			seen := map[string]bool{}
			for _, img := range images {
				assert.False(t, seen[img], "duplicate image %s", img)
				seen[img] = true
			}
		})
	}
}
