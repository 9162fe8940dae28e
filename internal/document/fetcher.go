// Package document downloads documents over HTTP and extracts plain text
// from the formats the service understands (PDF, DOCX, HTML, plain text).
package document

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	// Some document hosts reject Go's default user agent.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	defaultFetchTimeout = 30 * time.Second
	defaultMaxBodyBytes = 64 << 20 // 64 MiB
)

var whitespaceRuns = regexp.MustCompile(`\s{2,}`)

// Fetcher downloads a document from a URL and extracts its text.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher with default timeout and size limits.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		maxBytes: defaultMaxBodyBytes,
	}
}

// NewFetcherWithClient creates a Fetcher using the given HTTP client.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{
		client:   client,
		maxBytes: defaultMaxBodyBytes,
	}
}

// Fetch downloads the document at rawURL and returns its extracted text with
// whitespace runs collapsed. It returns an empty string on any network or
// parse failure; emptiness is the caller's signal that the document is
// unusable.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		log.Printf("document: invalid url %q: %v", rawURL, err)
		return ""
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Printf("document: fetch failed for %q: %v", rawURL, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("document: fetch failed for %q: status %d", rawURL, resp.StatusCode)
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		log.Printf("document: reading body failed for %q: %v", rawURL, err)
		return ""
	}

	contentType := resp.Header.Get("Content-Type")
	text, err := extractText(data, contentType, rawURL)
	if err != nil {
		log.Printf("document: extraction failed for %q: %v", rawURL, err)
		return ""
	}

	return normalizeWhitespace(text)
}

func extractText(data []byte, contentType, rawURL string) (string, error) {
	suffix := urlSuffix(rawURL)

	switch {
	case strings.Contains(contentType, "pdf") || suffix == ".pdf":
		return extractPDF(data)
	case strings.Contains(contentType, "wordprocessingml.document") || suffix == ".docx":
		return extractDOCX(data)
	case strings.Contains(contentType, "html") || suffix == ".html" || suffix == ".htm":
		return extractHTML(data)
	default:
		return string(data), nil
	}
}

func urlSuffix(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(u.Path))
}

func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
}

// DocumentName returns the last path segment of the URL without its query
// string, used to derive chunk IDs.
func DocumentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Path != "" {
		if name := path.Base(u.Path); name != "/" && name != "." {
			return name
		}
	}

	trimmed := rawURL
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "document"
	}
	return trimmed
}
