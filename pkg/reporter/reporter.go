package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
)

// Formats lists the supported report formats
var Formats = []string{"text", "json", "markdown", "html"}

// Reporter handles report generation in various formats
type Reporter struct {
	format string
}

// New creates a Reporter for one of Formats. An empty format selects text.
func New(format string) (*Reporter, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "text"
	}
	for _, f := range Formats {
		if f == format {
			return &Reporter{format: format}, nil
		}
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// Format returns the selected format
func (r *Reporter) Format() string {
	return r.format
}

// GenerateReport renders report in the configured format
func (r *Reporter) GenerateReport(report *models.CrawlReport) (string, error) {
	switch r.format {
	case "json":
		return r.generateJSON(report)
	case "markdown":
		return r.generateMarkdown(report), nil
	case "html":
		return r.generateHTML(report)
	default:
		return r.generateText(report), nil
	}
}

// Write renders report to w
func (r *Reporter) Write(w io.Writer, report *models.CrawlReport) error {
	out, err := r.GenerateReport(report)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// generateText produces the terminal metadata block
func (r *Reporter) generateText(report *models.CrawlReport) string {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "=== Crawler Metadata ===")
	fmt.Fprintf(&buf, "Total links found: %d out of %d\n", report.LinksFound, report.MaxLinks)
	fmt.Fprintf(&buf, "Percentage of maximum links found: %.2f%%\n", report.Percentage)
	fmt.Fprintf(&buf, "URL uniqueness enforced: %t\n", report.Uniqueness)
	fmt.Fprintf(&buf, "Current depth reached: %d out of maximum depth %d\n", report.DepthReached, report.MaxDepth)
	fmt.Fprintf(&buf, "Total unique URLs visited (cross levels): %d\n", report.UniqueVisited)
	fmt.Fprintln(&buf, "=========================")

	return buf.String()
}

func (r *Reporter) generateJSON(report *models.CrawlReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data) + "\n", nil
}

func (r *Reporter) generateMarkdown(report *models.CrawlReport) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Crawl Report for %s\n\n", report.StartURL)
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(&buf, "*Started %s, took %s*\n\n",
			report.StartedAt.Format(time.RFC3339),
			report.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(&buf, "## Summary\n\n")
	fmt.Fprintf(&buf, "| Metric | Value |\n")
	fmt.Fprintf(&buf, "|--------|-------|\n")
	fmt.Fprintf(&buf, "| Links found | %d of %d |\n", report.LinksFound, report.MaxLinks)
	fmt.Fprintf(&buf, "| Percentage | %.2f%% |\n", report.Percentage)
	fmt.Fprintf(&buf, "| URL uniqueness | %t |\n", report.Uniqueness)
	fmt.Fprintf(&buf, "| Depth reached | %d of %d |\n", report.DepthReached, report.MaxDepth)
	fmt.Fprintf(&buf, "| Unique URLs visited | %d |\n", report.UniqueVisited)
	fmt.Fprintf(&buf, "| Failed pages | %d |\n\n", report.Failed())

	if len(report.Levels) > 0 {
		fmt.Fprintf(&buf, "## Levels\n\n")
		fmt.Fprintf(&buf, "| Depth | Submitted | Succeeded | Failed | Accepted |\n")
		fmt.Fprintf(&buf, "|-------|-----------|-----------|--------|----------|\n")
		for _, l := range report.Levels {
			fmt.Fprintf(&buf, "| %d | %d | %d | %d | %d |\n", l.Depth, l.Submitted, l.Succeeded, l.Failed, l.Accepted)
		}
		fmt.Fprintf(&buf, "\n")
	}

	if failed := failedPages(report); len(failed) > 0 {
		fmt.Fprintf(&buf, "## Failed Pages\n\n")
		for _, p := range failed {
			fmt.Fprintf(&buf, "- `%s` (depth %d): %s\n", p.SourceURL, p.Depth, p.Error)
		}
		fmt.Fprintf(&buf, "\n")
	}

	return buf.String()
}

func (r *Reporter) generateHTML(report *models.CrawlReport) (string, error) {
	tmpl := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Crawl Report - {{.StartURL}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; color: #333; }
        table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
        th, td { border: 1px solid #ddd; padding: 0.4rem 0.8rem; text-align: left; }
        th { background: #f5f5f5; }
        .failed { color: #dc3545; }
    </style>
</head>
<body>
    <h1>Crawl Report for {{.StartURL}}</h1>
    <table>
        <tr><th>Links found</th><td>{{.LinksFound}} of {{.MaxLinks}}</td></tr>
        <tr><th>Percentage</th><td>{{printf "%.2f" .Percentage}}%</td></tr>
        <tr><th>URL uniqueness</th><td>{{.Uniqueness}}</td></tr>
        <tr><th>Depth reached</th><td>{{.DepthReached}} of {{.MaxDepth}}</td></tr>
        <tr><th>Unique URLs visited</th><td>{{.UniqueVisited}}</td></tr>
    </table>
    {{if .Pages}}
    <h2>Pages</h2>
    <table>
        <tr><th>Depth</th><th>URL</th><th>Status</th><th>Links</th><th>Title</th></tr>
        {{range .Pages}}
        <tr{{if not .Succeeded}} class="failed"{{end}}>
            <td>{{.Depth}}</td><td>{{.SourceURL}}</td><td>{{.StatusCode}}</td><td>{{len .Links}}</td>
            <td>{{if .Succeeded}}{{.Title}}{{else}}{{.Error}}{{end}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}
</body>
</html>
`

	t, err := template.New("report").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func failedPages(report *models.CrawlReport) []models.FetchResult {
	var failed []models.FetchResult
	for _, p := range report.Pages {
		if !p.Succeeded {
			failed = append(failed, p)
		}
	}
	return failed
}
