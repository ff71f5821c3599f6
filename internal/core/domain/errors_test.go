package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlocked(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed blocked error", &BlockedError{URL: "https://www.casa.it/immobili/1/", StatusCode: http.StatusForbidden}, true},
		{"wrapped blocked error", fmt.Errorf("scrape: %w", &BlockedError{URL: "u", StatusCode: http.StatusForbidden}), true},
		{"fetch error with 403 status", &FetchError{URL: "u", Attempts: 1, StatusCode: http.StatusForbidden, Err: errors.New("Forbidden")}, true},
		{"fetch error caused by block page", &FetchError{URL: "u", Attempts: 3, Err: errors.New("request blocked by anti-bot page")}, true},
		{"fetch error with 403 only in url", &FetchError{URL: "https://www.immobiliare.it/annunci/403123/", Attempts: 3, Err: errors.New("timeout")}, false},
		{"fetch error without cause", &FetchError{URL: "https://www.immobiliare.it/annunci/403123/", Attempts: 3}, false},
		{"fetch error with server error", &FetchError{URL: "u", Attempts: 3, StatusCode: http.StatusBadGateway, Err: errors.New("Bad Gateway")}, false},
		{"plain 403 forbidden text", fmt.Errorf("403 Forbidden"), true},
		{"plain status 403 text", errors.New("unexpected status 403"), true},
		{"connection reset", errors.New("connection reset by peer"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBlocked(tc.err))
		})
	}
}

func TestExtractionError_NamesMissingFields(t *testing.T) {
	err := &ExtractionError{Site: "subito.it", Missing: []string{"title", "price"}}
	assert.Equal(t, "subito.it: could not extract title and price from the page", err.Error())
}
