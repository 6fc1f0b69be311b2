package card

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	// Decoders for the formats the Discord CDN and the badge repo serve.
	_ "image/jpeg"
	_ "image/png"

	"github.com/jellydator/ttlcache/v3"
)

// ImageFetcher retrieves a remote image. The renderer depends on this
// interface so tests can substitute canned images.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// HTTPFetcher fetches and decodes images over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a bounded request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}
	return img, nil
}

// CachingFetcher wraps a fetcher with a TTL cache keyed by URL. Badge icons
// are static assets, so a hit avoids a CDN round trip per card.
type CachingFetcher struct {
	inner ImageFetcher
	cache *ttlcache.Cache[string, image.Image]
}

// NewCachingFetcher creates a caching fetcher with automatic cleanup.
func NewCachingFetcher(inner ImageFetcher, ttl time.Duration) *CachingFetcher {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, image.Image](ttl),
		ttlcache.WithDisableTouchOnHit[string, image.Image](),
	)
	go cache.Start()

	return &CachingFetcher{inner: inner, cache: cache}
}

func (c *CachingFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	if item := c.cache.Get(url); item != nil {
		return item.Value(), nil
	}

	img, err := c.inner.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.cache.Set(url, img, ttlcache.DefaultTTL)
	return img, nil
}
