package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
)

// worker is the per-URL unit of work: fetch, persist, extract and filter.
type worker struct {
	state    *State
	fetcher  Fetcher
	prober   Prober
	sink     Sink
	excluded map[string]struct{}
	logger   zerolog.Logger
}

// NormalizeURL strips one trailing slash so that "http://a/" and "http://a"
// share a single dedup entry and file name.
func NormalizeURL(rawURL string) string {
	return strings.TrimSuffix(strings.TrimSpace(rawURL), "/")
}

func (w *worker) run(ctx context.Context, rawURL string, depth int) models.FetchResult {
	pageURL := NormalizeURL(rawURL)
	result := models.FetchResult{SourceURL: pageURL, Depth: depth, Links: []string{}}
	logger := w.logger.With().Str("url", pageURL).Int("depth", depth).Logger()

	doc, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return w.fail(logger, result, &FetchError{URL: pageURL, Err: err})
	}
	result.StatusCode = doc.StatusCode
	if doc.StatusCode >= http.StatusBadRequest {
		return w.fail(logger, result, &FetchError{URL: pageURL, StatusCode: doc.StatusCode})
	}

	file, err := w.sink.Save(depth, pageURL, doc.Body)
	if err != nil {
		return w.fail(logger, result, &FetchError{URL: pageURL, StatusCode: doc.StatusCode, Err: err})
	}
	result.File = file
	result.Title = doc.Title
	result.Words = doc.Words
	result.Succeeded = true

	if w.state.ReachedLastDepth() {
		logger.Debug().Str("file", file).Msg("Fetched page at last depth")
		return result
	}

	result.Links = w.accept(ctx, logger, doc.Links)
	logger.Info().
		Int("candidates", len(doc.Links)).
		Int("accepted", len(result.Links)).
		Str("file", file).
		Msg("Crawled page")
	return result
}

func (w *worker) fail(logger zerolog.Logger, result models.FetchResult, err error) models.FetchResult {
	if errors.Is(err, context.Canceled) {
		logger.Debug().Err(err).Msg("Fetch canceled")
	} else {
		logger.Warn().Err(err).Msg("Fetch failed")
	}
	result.Succeeded = false
	result.Links = []string{}
	result.Error = err.Error()
	return result
}

// accept walks candidates in document order and keeps at most
// maxUrlsPerLevel of them. Checks run cheapest first.
func (w *worker) accept(ctx context.Context, logger zerolog.Logger, candidates []string) []string {
	limit := w.state.MaxURLsPerLevel()
	accepted := make([]string, 0, min(limit, len(candidates)))

	for _, candidate := range candidates {
		if len(accepted) >= limit {
			break
		}
		link := NormalizeURL(candidate)
		if reason := w.reject(ctx, link); reason != "" {
			logger.Debug().Str("link", link).Str("reason", reason).Msg("Skipped link")
			continue
		}
		accepted = append(accepted, link)
	}
	return accepted
}

// reject returns why link is not accepted, or "" when it is.
func (w *worker) reject(ctx context.Context, link string) string {
	if w.hasExcludedExtension(link) {
		return "excluded extension"
	}
	if !w.state.TestAndMarkThisLevel(link) {
		return "already taken this level"
	}
	if w.state.UniquenessEnabled() && w.state.IsVisitedCrossLevel(link) {
		return "already fetched"
	}
	status, err := w.prober.Status(ctx, link)
	if err != nil {
		return "probe failed: " + err.Error()
	}
	if status >= http.StatusBadRequest {
		return "status " + strconv.Itoa(status)
	}
	return ""
}

// hasExcludedExtension matches the extension of the last path segment and
// the host suffix, so "x.onion" hosts are rejected as well as ".pdf" paths.
func (w *worker) hasExcludedExtension(link string) bool {
	if len(w.excluded) == 0 {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), "."); ext != "" {
		if _, ok := w.excluded[ext]; ok {
			return true
		}
	}
	host := strings.ToLower(u.Hostname())
	if i := strings.LastIndexByte(host, '.'); i >= 0 {
		if _, ok := w.excluded[host[i+1:]]; ok {
			return true
		}
	}
	return false
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}
