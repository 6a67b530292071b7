package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/publicsuffix"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
	"github.com/amosWeiskopf/levelcrawl/pkg/extractor"
)

var (
	// ErrUnsupportedContent is returned for responses that are not web pages
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrBodyTooLarge is returned when a body exceeds the configured cap
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrExtraction is returned when a page body cannot be parsed
	ErrExtraction = errors.New("link extraction failed")
)

// Options controls HTTP fetching behaviour
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Summarize    bool
}

// HTTPFetcher downloads pages and extracts their links
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	extractor    *extractor.Extractor
}

// New constructs an HTTP fetcher using the provided options
func New(opts Options) (*HTTPFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &HTTPFetcher{
		client:       &http.Client{Transport: newTransport(), Timeout: opts.Timeout, Jar: jar},
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		extractor:    extractor.New(opts.Summarize),
	}, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Fetch downloads pageURL. Error statuses are returned in the document
// without a body; transport, content-type and parse failures are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}
	defer resp.Body.Close()

	doc := &models.Document{
		URL:         pageURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return doc, nil
	}
	if !IsWebpageMIME(doc.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContent, doc.ContentType)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}
	doc.Body = body

	page, err := f.extractor.Extract(pageURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	doc.Links = page.Links
	doc.Title = page.Title
	doc.Words = page.Words
	return doc, nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}
	return body, nil
}

// IsWebpageMIME reports whether a Content-Type header names an HTML-like
// document. A missing header is accepted.
func IsWebpageMIME(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mimeType := strings.TrimSpace(strings.Split(strings.ToLower(contentType), ";")[0])
	switch mimeType {
	case "text/html", "application/xhtml+xml", "application/xhtml", "text/xml", "application/xml":
		return true
	}
	return false
}
