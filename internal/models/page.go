package models

import "time"

// Document is what the fetch collaborator returns for a single URL
type Document struct {
	URL         string   `json:"url"`
	StatusCode  int      `json:"status_code"`
	ContentType string   `json:"content_type"`
	Body        []byte   `json:"-"`
	Links       []string `json:"links"`
	Title       string   `json:"title"`
	Words       int      `json:"words"`
}

// FetchResult is produced by one fetch worker and consumed once by the crawler
type FetchResult struct {
	SourceURL  string   `json:"source_url"`
	Depth      int      `json:"depth"`
	Links      []string `json:"links"`
	Succeeded  bool     `json:"succeeded"`
	StatusCode int      `json:"status_code,omitempty"`
	File       string   `json:"file,omitempty"`
	Title      string   `json:"title,omitempty"`
	Words      int      `json:"words,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// LevelSummary describes one completed BFS level
type LevelSummary struct {
	Depth     int `json:"depth"`
	Submitted int `json:"submitted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Accepted  int `json:"accepted"`
}

// CrawlReport contains the terminal metadata of a crawl
type CrawlReport struct {
	RunID         string         `json:"run_id,omitempty"`
	StartURL      string         `json:"start_url"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration_ns"`
	LinksFound    int            `json:"links_found"`
	MaxLinks      int            `json:"max_links"`
	Percentage    float64        `json:"percentage"`
	Uniqueness    bool           `json:"uniqueness"`
	DepthReached  int            `json:"depth_reached"`
	MaxDepth      int            `json:"max_depth"`
	UniqueVisited int            `json:"unique_visited"`
	Levels        []LevelSummary `json:"levels"`
	Pages         []FetchResult  `json:"pages"`
}

// Failed returns the number of pages that could not be fetched
func (r *CrawlReport) Failed() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Succeeded {
			n++
		}
	}
	return n
}
