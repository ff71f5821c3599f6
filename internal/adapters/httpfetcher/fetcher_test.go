package httpfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"listing-scraper-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseBackoff = 20 * time.Millisecond
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BaseBackoff)
	assert.Equal(t, 5, cfg.MaxRedirects)

	assert.Equal(t, 20*time.Second, StrictConfig().Timeout)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 1))
	assert.Equal(t, 2*time.Second, backoff(time.Second, 2))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 3))
}

func TestFetch_ReturnsBodyAndSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>ok</h1></body></html>"))
	}))
	defer srv.Close()

	body, err := New(testConfig()).Fetch(context.Background(), srv.URL+"/annuncio/1")
	require.NoError(t, err)
	assert.Contains(t, string(body), "<h1>ok</h1>")

	require.NotNil(t, got)
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("Accept"))
	assert.NotEmpty(t, got.Get("Accept-Language"))
	assert.NotEmpty(t, got.Get("Accept-Encoding"))
	assert.Equal(t, "1", got.Get("Upgrade-Insecure-Requests"))
}

func TestFetch_PermanentFailureMakesExactlyThreeAttempts(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	_, err := New(cfg).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "3 attempt")
	assert.False(t, domain.IsBlocked(err))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, hits, 3)
	// паузы 1x и 2x базовой
	assert.GreaterOrEqual(t, hits[1].Sub(hits[0]), cfg.BaseBackoff)
	assert.GreaterOrEqual(t, hits[2].Sub(hits[1]), 2*cfg.BaseBackoff)
}

func TestFetch_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<html>second</html>"))
	}))
	defer srv.Close()

	body, err := New(testConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "second")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_AnySuccessStatusIsAccepted(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNonAuthoritativeInfo, http.StatusPartialContent} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(code)
			_, _ = w.Write([]byte("<html>listing</html>"))
		}))

		body, err := New(testConfig()).Fetch(context.Background(), srv.URL)
		srv.Close()

		require.NoError(t, err, "status %d", code)
		assert.Contains(t, string(body), "listing", "status %d", code)
		assert.Equal(t, int32(1), calls.Load(), "status %d", code)
	}
}

func TestFetch_ErrorStatusKeepsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxAttempts = 1
	_, err := New(cfg).Fetch(context.Background(), srv.URL)

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, fetchErr.Err.Error(), "unexpected status 404")
	assert.False(t, domain.IsBlocked(err))
}

func TestFetch_ForbiddenIsBlockedWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(testConfig()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var blocked *domain.BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, http.StatusForbidden, blocked.StatusCode)
	assert.True(t, domain.IsBlocked(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseBackoff = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(cfg).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_TooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxAttempts = 1

	_, err := New(cfg).Fetch(context.Background(), srv.URL+"/r")
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 1, fetchErr.Attempts)
}

func TestFetch_FollowsShortRedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>moved</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, err := New(testConfig()).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Contains(t, string(body), "moved")
}
