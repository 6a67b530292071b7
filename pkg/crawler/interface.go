package crawler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
)

// Fetcher downloads a page and returns its status, body and outbound links.
// A non-nil error means the page could not be fetched or parsed; HTTP error
// statuses are reported through Document.StatusCode.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*models.Document, error)
}

// Prober returns the HTTP status a candidate link answers with
type Prober interface {
	Status(ctx context.Context, link string) (int, error)
}

// Sink persists the raw body of a page fetched at the given depth and
// returns where it was written
type Sink interface {
	Save(depth int, pageURL string, body []byte) (string, error)
}

// Observer is notified of crawl progress. Calls come from the Crawler
// goroutine only.
type Observer interface {
	LevelStarted(depth, size int)
	ResultReceived(result models.FetchResult)
	LevelFinished(summary models.LevelSummary)
}

// Options contains configuration for the crawler
type Options struct {
	Workers            int             // Pool size, shared by every level
	ExcludedExtensions []string        // Link extensions rejected without probing
	Logger             *zerolog.Logger // Defaults to a no-op logger
	Observer           Observer        // Optional progress hooks
}
