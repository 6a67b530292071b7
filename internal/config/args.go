package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ExpectedArgs is the number of positional arguments of the crawl command
const ExpectedArgs = 4

// ConfigurationError reports malformed startup input. It is fatal and is
// raised before any crawl state exists.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// CrawlArgs are the validated positional arguments of a crawl
type CrawlArgs struct {
	StartURL        string
	MaxURLsPerLevel int
	MaxDepth        int
	URLUniqueness   bool
}

// CheckArgCount validates the number of positional arguments
func CheckArgCount(args []string) error {
	if len(args) != ExpectedArgs {
		return configErrorf("incorrect number of arguments: expected %d, got %d", ExpectedArgs, len(args))
	}
	return nil
}

// ParseArgs validates <startURL> <maxUrlsPerLevel> <maxDepth> <urlUniqueness>
// without touching the network.
func ParseArgs(args []string) (CrawlArgs, error) {
	if err := CheckArgCount(args); err != nil {
		return CrawlArgs{}, err
	}

	startURL := strings.TrimSpace(args[0])
	if startURL == "" {
		return CrawlArgs{}, configErrorf("start URL cannot be empty")
	}
	u, err := url.Parse(startURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return CrawlArgs{}, configErrorf("start URL must be an absolute http or https URL")
	}

	maxURLs, err := strconv.Atoi(args[1])
	if err != nil || maxURLs < 1 {
		return CrawlArgs{}, configErrorf("maxUrlsPerLevel must be a positive integer")
	}

	maxDepth, err := strconv.Atoi(args[2])
	if err != nil || maxDepth < 0 {
		return CrawlArgs{}, configErrorf("maxDepth must be a non-negative integer")
	}

	var unique bool
	switch strings.ToLower(args[3]) {
	case "true":
		unique = true
	case "false":
		unique = false
	default:
		return CrawlArgs{}, configErrorf("urlUniqueness must be 'true' or 'false'")
	}

	return CrawlArgs{
		StartURL:        startURL,
		MaxURLsPerLevel: maxURLs,
		MaxDepth:        maxDepth,
		URLUniqueness:   unique,
	}, nil
}
