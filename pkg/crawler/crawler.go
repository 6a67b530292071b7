package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
)

// Crawler drives the level-synchronized BFS: every URL of a level is fetched
// concurrently, and level L+1 starts only after all of level L has reported.
type Crawler struct {
	state    *State
	worker   *worker
	workers  int
	observer Observer
	logger   zerolog.Logger
}

type indexedResult struct {
	index  int
	result models.FetchResult
}

// New wires a crawler around an existing state. The state belongs to this
// crawler for the duration of Crawl.
func New(state *State, fetcher Fetcher, prober Prober, sink Sink, opts Options) (*Crawler, error) {
	if state == nil {
		return nil, errors.New("crawler: nil state")
	}
	if fetcher == nil || prober == nil || sink == nil {
		return nil, errors.New("crawler: fetcher, prober and sink are required")
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	return &Crawler{
		state: state,
		worker: &worker{
			state:    state,
			fetcher:  fetcher,
			prober:   prober,
			sink:     sink,
			excluded: extensionSet(opts.ExcludedExtensions),
			logger:   logger,
		},
		workers:  workers,
		observer: opts.Observer,
		logger:   logger,
	}, nil
}

// Crawl runs the crawl from startURL to completion and returns its report.
// When ctx is canceled the level in flight still drains, the crawl stops at
// the next barrier, and the partial report is returned with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, startURL string) (*models.CrawlReport, error) {
	started := time.Now()
	p := newPool(c.workers)

	var (
		frontier = []string{NormalizeURL(startURL)}
		levels   []models.LevelSummary
		pages    []models.FetchResult
		crawlErr error
	)

	for len(frontier) > 0 && !c.state.ReachedMaxDepth() {
		depth := c.state.CurrentDepth()
		c.logger.Info().Int("depth", depth).Int("urls", len(frontier)).Msg("Searching depth")

		results := c.runLevel(ctx, p, frontier, depth)
		next, summary := mergeLevel(depth, results)

		c.state.EndLevel(len(next))
		levels = append(levels, summary)
		pages = append(pages, results...)
		frontier = next

		c.logger.Info().
			Int("depth", depth).
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Int("accepted", summary.Accepted).
			Msg("Level complete")
		if c.observer != nil {
			c.observer.LevelFinished(summary)
		}

		if err := ctx.Err(); err != nil {
			crawlErr = fmt.Errorf("crawl interrupted at depth %d: %w", depth, err)
			break
		}
	}

	p.Close()
	return c.report(startURL, started, levels, pages), crawlErr
}

// runLevel submits one job per frontier URL and blocks until each has
// delivered exactly one result.
func (c *Crawler) runLevel(ctx context.Context, p *pool, frontier []string, depth int) []models.FetchResult {
	if c.observer != nil {
		c.observer.LevelStarted(depth, len(frontier))
	}

	// Mark the whole level before any job starts: with uniqueness on, a
	// sibling must never accept a URL this level is already fetching.
	for _, u := range frontier {
		c.state.MarkVisitedCrossLevel(u)
	}

	out := make(chan indexedResult, len(frontier))
	for i, u := range frontier {
		p.Submit(func() {
			res := models.FetchResult{SourceURL: u, Depth: depth, Links: []string{}}
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error().Str("url", u).Interface("panic", r).Msg("Worker panicked")
					res = models.FetchResult{
						SourceURL: u,
						Depth:     depth,
						Links:     []string{},
						Error:     fmt.Sprintf("panic: %v", r),
					}
				}
				out <- indexedResult{index: i, result: res}
			}()
			res = c.worker.run(ctx, u, depth)
		})
	}

	results := make([]models.FetchResult, len(frontier))
	for range frontier {
		r := <-out
		results[r.index] = r.result
		if c.observer != nil {
			c.observer.ResultReceived(r.result)
		}
	}
	return results
}

// mergeLevel builds the next frontier from accepted links in frontier order.
func mergeLevel(depth int, results []models.FetchResult) ([]string, models.LevelSummary) {
	summary := models.LevelSummary{Depth: depth, Submitted: len(results)}
	seen := make(map[string]struct{})
	var next []string

	for _, res := range results {
		if res.Succeeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		for _, link := range res.Links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			next = append(next, link)
		}
	}
	summary.Accepted = len(next)
	return next, summary
}

func (c *Crawler) report(startURL string, started time.Time, levels []models.LevelSummary, pages []models.FetchResult) *models.CrawlReport {
	maxLinks := c.state.MaxReachableLinks()
	found := c.state.LinksFound()
	return &models.CrawlReport{
		StartURL:      NormalizeURL(startURL),
		StartedAt:     started,
		Duration:      time.Since(started),
		LinksFound:    found,
		MaxLinks:      maxLinks,
		Percentage:    float64(found) / float64(maxLinks) * 100,
		Uniqueness:    c.state.UniquenessEnabled(),
		DepthReached:  c.state.CurrentDepth() - 1,
		MaxDepth:      c.state.MaxDepth(),
		UniqueVisited: c.state.VisitedCount(),
		Levels:        levels,
		Pages:         pages,
	}
}
