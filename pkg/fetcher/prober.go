package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// ProberOptions controls link status probing
type ProberOptions struct {
	UserAgent string
	Timeout   time.Duration
	CacheSize int
}

// Prober answers the HTTP status of candidate links. Answers are cached and
// concurrent probes of one link share a single request.
type Prober struct {
	client    *http.Client
	userAgent string
	cache     *lru.Cache
	group     singleflight.Group
}

// NewProber creates a Prober
func NewProber(opts ProberOptions) (*Prober, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create probe cache: %w", err)
	}
	return &Prober{
		client:    &http.Client{Transport: newTransport(), Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		cache:     cache,
	}, nil
}

// Status returns the final status code of link after redirects. Transport
// errors are returned and not cached.
func (p *Prober) Status(ctx context.Context, link string) (int, error) {
	if v, ok := p.cache.Get(link); ok {
		return v.(int), nil
	}

	v, err, _ := p.group.Do(link, func() (interface{}, error) {
		status, err := p.probe(ctx, http.MethodHead, link)
		if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
			status, err = p.probe(ctx, http.MethodGet, link)
		}
		if err != nil {
			return 0, err
		}
		p.cache.Add(link, status)
		return status, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (p *Prober) probe(ctx context.Context, method, link string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", method, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}

// Len is the number of cached statuses
func (p *Prober) Len() int {
	return p.cache.Len()
}
