package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/amosWeiskopf/levelcrawl/pkg/utils"
)

// ErrParse is returned when a document cannot be parsed as HTML
var ErrParse = errors.New("unparsable document")

// Page holds what the crawler needs from one HTML document
type Page struct {
	Links []string
	Title string
	Words int
}

// Extractor pulls outbound links and a short summary out of HTML
type Extractor struct {
	summarize bool
}

// New creates a new Extractor instance. With summarize set, title and word
// count come from trafilatura's main-content extraction.
func New(summarize bool) *Extractor {
	return &Extractor{summarize: summarize}
}

// Extract parses body fetched from pageURL
func (e *Extractor) Extract(pageURL string, body []byte) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad page url: %v", ErrParse, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	page := &Page{Links: Links(doc, base)}
	page.Title, page.Words = fallbackSummary(doc)

	if e.summarize {
		if title, words, ok := summarize(body, base); ok {
			if title != "" {
				page.Title = title
			}
			page.Words = words
		}
	}
	return page, nil
}

// Links returns the absolute http(s) links of doc in document order, without
// duplicates. Relative references resolve against <base href> when present.
func Links(doc *goquery.Document, pageURL *url.URL) []string {
	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = pageURL.ResolveReference(ref)
		}
	}

	seen := make(map[string]bool)
	links := []string{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := resolve(base, href)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})
	return links
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

func fallbackSummary(doc *goquery.Document) (string, int) {
	title := utils.CleanText(doc.Find("title").First().Text())
	body := doc.Find("body")
	body.Find("script, style, noscript").Remove()
	return title, utils.CountWords(body.Text())
}

// summarize uses trafilatura to measure the main content. Short or
// boilerplate-only pages make it fail; the caller keeps the fallback then.
func summarize(body []byte, pageURL *url.URL) (string, int, bool) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: pageURL,
	})
	if err != nil || result == nil || result.ContentText == "" {
		return "", 0, false
	}
	return utils.CleanText(result.Metadata.Title), utils.CountWords(result.ContentText), true
}
