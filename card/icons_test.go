package card_test

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/profilecard-dev/profilecard/card"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher wraps stubFetcher with a call counter.
type countingFetcher struct {
	mu    sync.Mutex
	inner stubFetcher
	calls int
}

func (c *countingFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Fetch(ctx, url)
}

func TestCachingFetcher_HitsSkipInner(t *testing.T) {
	inner := &countingFetcher{}
	fetcher := card.NewCachingFetcher(inner, time.Minute)

	first, err := fetcher.Fetch(context.Background(), "https://example.com/badge.png")
	require.NoError(t, err)
	second, err := fetcher.Fetch(context.Background(), "https://example.com/badge.png")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
}

func TestCachingFetcher_ErrorsAreNotCached(t *testing.T) {
	inner := &countingFetcher{inner: stubFetcher{failOn: "badge"}}
	fetcher := card.NewCachingFetcher(inner, time.Minute)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/badge.png")
	require.Error(t, err)
	_, err = fetcher.Fetch(context.Background(), "https://example.com/badge.png")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestHTTPFetcher_DecodesPNG(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		// 1x1 transparent PNG
		_, _ = w.Write([]byte{
			0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D,
			0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
			0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89, 0x00, 0x00, 0x00,
			0x0B, 0x49, 0x44, 0x41, 0x54, 0x78, 0xDA, 0x63, 0x60, 0x00, 0x02, 0x00,
			0x00, 0x05, 0x00, 0x01, 0xE9, 0xFA, 0xDC, 0xD8, 0x00, 0x00, 0x00, 0x00,
			0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82,
		})
	}))
	defer server.Close()

	fetcher := card.NewHTTPFetcher(5 * time.Second)
	img, err := fetcher.Fetch(context.Background(), server.URL+"/icon.png")
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
}

func TestHTTPFetcher_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := card.NewHTTPFetcher(5 * time.Second)
	_, err := fetcher.Fetch(context.Background(), server.URL+"/missing.png")
	assert.Error(t, err)
}
