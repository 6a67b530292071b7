package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/levelcrawl/internal/config"
	"github.com/amosWeiskopf/levelcrawl/internal/models"
)

type fakePage struct {
	status int
	links  []string
	err    error
	panics bool
	delay  time.Duration
}

// fakeFetcher serves a fixed link graph and counts fetches per URL
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls map[string]int
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (*models.Document, error) {
	f.mu.Lock()
	f.calls[pageURL]++
	page, ok := f.pages[pageURL]
	f.mu.Unlock()

	if page.delay > 0 {
		time.Sleep(page.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page.panics {
		panic("boom")
	}
	if page.err != nil {
		return nil, page.err
	}
	status := page.status
	if !ok {
		status = http.StatusNotFound
	} else if status == 0 {
		status = http.StatusOK
	}
	return &models.Document{
		URL:        pageURL,
		StatusCode: status,
		Body:       []byte("<html>" + pageURL + "</html>"),
		Links:      page.links,
		Title:      pageURL,
	}, nil
}

func (f *fakeFetcher) count(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

// fakeProber answers 200 unless told otherwise
type fakeProber struct {
	mu       sync.Mutex
	statuses map[string]int
	errs     map[string]error
	calls    map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		statuses: make(map[string]int),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (p *fakeProber) Status(_ context.Context, link string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[link]++
	if err := p.errs[link]; err != nil {
		return 0, err
	}
	if status, ok := p.statuses[link]; ok {
		return status, nil
	}
	return http.StatusOK, nil
}

func (p *fakeProber) count(link string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[link]
}

type memSink struct {
	mu    sync.Mutex
	saved map[string]int
	fail  map[string]bool
}

func newMemSink() *memSink {
	return &memSink{saved: make(map[string]int), fail: make(map[string]bool)}
}

func (s *memSink) Save(depth int, pageURL string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[pageURL] {
		return "", errors.New("disk full")
	}
	s.saved[pageURL] = depth
	return fmt.Sprintf("%d/%s", depth, pageURL), nil
}

type recordingObserver struct {
	started  []int
	results  int
	finished []models.LevelSummary
}

func (o *recordingObserver) LevelStarted(depth, size int) { o.started = append(o.started, depth) }
func (o *recordingObserver) ResultReceived(models.FetchResult) { o.results++ }
func (o *recordingObserver) LevelFinished(s models.LevelSummary) { o.finished = append(o.finished, s) }

func newTestCrawler(t *testing.T, m, d int, unique bool, f Fetcher, p Prober, s Sink, opts Options) *Crawler {
	t.Helper()
	state, err := NewState(m, d, unique)
	require.NoError(t, err)
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	c, err := New(state, f, p, s, opts)
	require.NoError(t, err)
	return c
}

func pageURLs(report *models.CrawlReport, depth int) []string {
	var urls []string
	for _, p := range report.Pages {
		if p.Depth == depth {
			urls = append(urls, p.SourceURL)
		}
	}
	return urls
}

func TestNewCrawler(t *testing.T) {
	state, err := NewState(1, 1, false)
	require.NoError(t, err)

	tests := []struct {
		name    string
		state   *State
		fetcher Fetcher
		prober  Prober
		sink    Sink
		wantErr bool
	}{
		{"valid", state, newFakeFetcher(nil), newFakeProber(), newMemSink(), false},
		{"nil state", nil, newFakeFetcher(nil), newFakeProber(), newMemSink(), true},
		{"nil fetcher", state, nil, newFakeProber(), newMemSink(), true},
		{"nil prober", state, newFakeFetcher(nil), nil, newMemSink(), true},
		{"nil sink", state, newFakeFetcher(nil), newFakeProber(), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.state, tt.fetcher, tt.prober, tt.sink, Options{})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

func TestCrawlLimitsLinksPerPage(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test":   {links: []string{"https://a.test/b", "https://a.test/c", "https://a.test/d", "https://a.test/b"}},
		"https://a.test/b": {},
		"https://a.test/c": {},
		"https://a.test/d": {},
	})
	c := newTestCrawler(t, 2, 1, false, fetcher, newFakeProber(), newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test/")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.test"}, pageURLs(report, 0))
	assert.Equal(t, []string{"https://a.test/b", "https://a.test/c"}, pageURLs(report, 1))
	assert.Equal(t, 0, fetcher.count("https://a.test/d"))

	assert.Equal(t, 3, report.LinksFound)
	assert.Equal(t, 3, report.MaxLinks)
	assert.InDelta(t, 100.0, report.Percentage, 0.001)
	assert.Equal(t, 1, report.DepthReached)
	assert.Equal(t, 1, report.MaxDepth)
	assert.Equal(t, 3, report.UniqueVisited)
	assert.Len(t, report.Levels, 2)
}

func uniquenessGraph() map[string]fakePage {
	return map[string]fakePage{
		"https://a.test":   {links: []string{"https://a.test/b", "https://a.test/c"}},
		"https://a.test/b": {links: []string{"https://a.test", "https://a.test/c", "https://a.test/d"}},
		"https://a.test/c": {links: []string{"https://a.test/b", "https://a.test/e"}},
		"https://a.test/d": {},
		"https://a.test/e": {},
	}
}

func TestCrawlWithUniqueness(t *testing.T) {
	fetcher := newFakeFetcher(uniquenessGraph())
	c := newTestCrawler(t, 3, 2, true, fetcher, newFakeProber(), newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	for _, u := range []string{"https://a.test", "https://a.test/b", "https://a.test/c", "https://a.test/d", "https://a.test/e"} {
		assert.Equal(t, 1, fetcher.count(u), u)
	}
	assert.Equal(t, []string{"https://a.test/d", "https://a.test/e"}, pageURLs(report, 2))
	assert.Equal(t, 5, report.LinksFound)
	assert.Equal(t, 5, report.UniqueVisited)
	assert.True(t, report.Uniqueness)
}

func TestCrawlWithoutUniqueness(t *testing.T) {
	fetcher := newFakeFetcher(uniquenessGraph())
	c := newTestCrawler(t, 3, 2, false, fetcher, newFakeProber(), newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://a.test",
		"https://a.test/c",
		"https://a.test/d",
		"https://a.test/b",
		"https://a.test/e",
	}, pageURLs(report, 2))
	assert.Equal(t, 2, fetcher.count("https://a.test"))
	assert.Equal(t, 8, report.LinksFound)
	assert.Equal(t, 5, report.UniqueVisited)
}

func TestCrawlFailedPageDoesNotStopLevel(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test":   {links: []string{"https://a.test/x", "https://a.test/y"}},
		"https://a.test/x": {status: http.StatusNotFound, links: []string{"https://a.test/never"}},
		"https://a.test/y": {links: []string{"https://a.test/z"}},
		"https://a.test/z": {},
	})
	c := newTestCrawler(t, 2, 2, false, fetcher, newFakeProber(), newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.test/z"}, pageURLs(report, 2))
	assert.Equal(t, models.LevelSummary{Depth: 1, Submitted: 2, Succeeded: 1, Failed: 1, Accepted: 1}, report.Levels[1])
	assert.Equal(t, 1, report.Failed())

	var failed models.FetchResult
	for _, p := range report.Pages {
		if p.SourceURL == "https://a.test/x" {
			failed = p
		}
	}
	assert.False(t, failed.Succeeded)
	assert.Empty(t, failed.Links)
	assert.Contains(t, failed.Error, "status 404")
	assert.Equal(t, 0, fetcher.count("https://a.test/never"))
}

func TestCrawlFetchAndSinkErrors(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test":      {links: []string{"https://a.test/err", "https://a.test/disk", "https://a.test/ok"}},
		"https://a.test/err":  {err: errors.New("connection reset")},
		"https://a.test/disk": {},
		"https://a.test/ok":   {},
	})
	sink := newMemSink()
	sink.fail["https://a.test/disk"] = true
	c := newTestCrawler(t, 3, 1, false, fetcher, newFakeProber(), sink, Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, models.LevelSummary{Depth: 1, Submitted: 3, Succeeded: 1, Failed: 2}, report.Levels[1])
	assert.Contains(t, report.Pages[1].Error, "connection reset")
	assert.Contains(t, report.Pages[2].Error, "disk full")
	assert.True(t, report.Pages[3].Succeeded)
	assert.Equal(t, "1/https://a.test/ok", report.Pages[3].File)
}

func TestCrawlRecoversFromPanics(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test":      {links: []string{"https://a.test/boom", "https://a.test/ok"}},
		"https://a.test/boom": {panics: true},
		"https://a.test/ok":   {},
	})
	c := newTestCrawler(t, 2, 1, false, fetcher, newFakeProber(), newMemSink(), Options{Workers: 1})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	require.Len(t, report.Pages, 3)
	assert.False(t, report.Pages[1].Succeeded)
	assert.Equal(t, "panic: boom", report.Pages[1].Error)
	assert.True(t, report.Pages[2].Succeeded)
}

func TestCrawlProbeRejections(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test": {links: []string{"https://a.test/gone", "https://a.test/down", "https://a.test/ok"}},
	})
	prober := newFakeProber()
	prober.statuses["https://a.test/gone"] = http.StatusGone
	prober.errs["https://a.test/down"] = errors.New("timeout")
	c := newTestCrawler(t, 3, 1, false, fetcher, prober, newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.test/ok"}, report.Pages[0].Links)
	assert.Equal(t, 2, report.LinksFound)
}

func TestCrawlExcludedExtensions(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test": {links: []string{
			"https://a.test/logo.PNG",
			"https://a.test/paper.pdf?dl=1",
			"http://hidden.onion/",
			"https://a.test/page.html",
		}},
	})
	prober := newFakeProber()
	c := newTestCrawler(t, 5, 1, false, fetcher, prober, newMemSink(), Options{
		ExcludedExtensions: config.DefaultExcludedExtensions,
	})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.test/page.html"}, report.Pages[0].Links)
	assert.Equal(t, 0, prober.count("https://a.test/logo.PNG"))
	assert.Equal(t, 0, prober.count("http://hidden.onion"))
}

func TestCrawlMaxDepthZero(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test": {links: []string{"https://a.test/b"}},
	})
	prober := newFakeProber()
	c := newTestCrawler(t, 3, 0, true, fetcher, prober, newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Len(t, report.Pages, 1)
	assert.Empty(t, report.Pages[0].Links)
	assert.Equal(t, 0, prober.count("https://a.test/b"))
	assert.Equal(t, 1, report.LinksFound)
	assert.Equal(t, 1, report.MaxLinks)
	assert.Equal(t, 0, report.DepthReached)
}

func TestCrawlMergesInFrontierOrder(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test":   {links: []string{"https://a.test/b", "https://a.test/c"}},
		"https://a.test/b": {links: []string{"https://a.test/d"}, delay: 50 * time.Millisecond},
		"https://a.test/c": {links: []string{"https://a.test/e"}},
		"https://a.test/d": {},
		"https://a.test/e": {},
	})
	c := newTestCrawler(t, 2, 2, false, fetcher, newFakeProber(), newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.test/d", "https://a.test/e"}, pageURLs(report, 2))
}

func TestCrawlStopsWhenFrontierEmpties(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test": {},
	})
	c := newTestCrawler(t, 2, 5, false, fetcher, newFakeProber(), newMemSink(), Options{})

	report, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Len(t, report.Levels, 1)
	assert.Equal(t, 0, report.DepthReached)
	assert.Equal(t, 63, report.MaxLinks)
}

func TestCrawlCanceled(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test": {links: []string{"https://a.test/b"}},
	})
	c := newTestCrawler(t, 2, 3, false, fetcher, newFakeProber(), newMemSink(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.Crawl(ctx, "https://a.test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Len(t, report.Levels, 1)
	assert.False(t, report.Pages[0].Succeeded)
}

func TestCrawlNotifiesObserver(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test":   {links: []string{"https://a.test/b"}},
		"https://a.test/b": {},
	})
	obs := &recordingObserver{}
	c := newTestCrawler(t, 1, 1, false, fetcher, newFakeProber(), newMemSink(), Options{Observer: obs})

	_, err := c.Crawl(context.Background(), "https://a.test")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, obs.started)
	assert.Equal(t, 2, obs.results)
	require.Len(t, obs.finished, 2)
	assert.Equal(t, 1, obs.finished[0].Accepted)
}

func TestMergeLevel(t *testing.T) {
	results := []models.FetchResult{
		{SourceURL: "a", Succeeded: true, Links: []string{"x", "y"}},
		{SourceURL: "b", Links: []string{}},
		{SourceURL: "c", Succeeded: true, Links: []string{"y", "z"}},
	}

	next, summary := mergeLevel(3, results)
	assert.Equal(t, []string{"x", "y", "z"}, next)
	assert.Equal(t, models.LevelSummary{Depth: 3, Submitted: 3, Succeeded: 2, Failed: 1, Accepted: 3}, summary)
}
