package utils

import (
	"regexp"
	"strings"
)

var (
	schemePrefix = regexp.MustCompile(`(?i)^https?://`)
	nonAlnum     = regexp.MustCompile(`[^a-zA-Z0-9]`)
	space        = regexp.MustCompile(`\s+`)
)

// CleanText collapses runs of whitespace and trims the result
func CleanText(text string) string {
	return strings.TrimSpace(space.ReplaceAllString(text, " "))
}

// CountWords returns the number of whitespace separated words in text
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// SanitizeFilename turns a URL into a flat file name: the http(s) scheme is
// dropped and every character outside [a-zA-Z0-9] becomes an underscore.
func SanitizeFilename(rawURL string) string {
	name := schemePrefix.ReplaceAllString(rawURL, "")
	return nonAlnum.ReplaceAllString(name, "_")
}

// GetDomainFromURL extracts the lower-cased host from a URL without parsing it
func GetDomainFromURL(url string) string {
	if idx := strings.Index(url, "://"); idx > 0 {
		url = url[idx+3:]
	}
	if idx := strings.IndexAny(url, "/?#"); idx >= 0 {
		url = url[:idx]
	}
	if idx := strings.LastIndex(url, "@"); idx >= 0 {
		url = url[idx+1:]
	}
	if idx := strings.Index(url, ":"); idx > 0 {
		url = url[:idx]
	}
	return strings.ToLower(url)
}
