package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/allthingssecurity/deepsearch/internal/research"
)

const ddgEndpoint = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo scrapes the DuckDuckGo lite HTML interface. No API key
// is required, which makes it the fallback when nothing is configured.
type DuckDuckGo struct {
	maxResults int
	client     *http.Client
	lastCall   time.Time
}

// NewDuckDuckGo creates a DuckDuckGo backend.
func NewDuckDuckGo(maxResults int) *DuckDuckGo {
	return &DuckDuckGo{
		maxResults: maxResults,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

var (
	ddgLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgAltLinkPattern = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
)

// Search posts the query to the lite page and parses the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]research.Candidate, error) {
	// Stay under roughly 1 req/s; the lite page blocks aggressively.
	if wait := time.Until(d.lastCall.Add(time.Second)); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.lastCall = time.Now()

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &research.ProviderError{Provider: "duckduckgo", Op: "search", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &research.ProviderError{Provider: "duckduckgo", Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &research.ProviderError{Provider: "duckduckgo", Op: "search", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &research.ProviderError{Provider: "duckduckgo", Op: "search", Err: err}
	}

	return d.parseResults(string(body)), nil
}

func (d *DuckDuckGo) parseResults(html string) []research.Candidate {
	matches := ddgLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = ddgAltLinkPattern.FindAllStringSubmatch(html, -1)
	}
	snippets := ddgSnippetPattern.FindAllStringSubmatch(html, -1)

	var candidates []research.Candidate
	for i, match := range matches {
		if len(match) < 3 {
			continue
		}
		link := strings.TrimSpace(match[1])
		title := stripTags(match[2])
		if link == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) && len(snippets[i]) > 1 {
			snippet = stripTags(snippets[i][1])
		}

		candidates = append(candidates, research.Candidate{
			URL:     link,
			Title:   title,
			Content: snippet,
		})
		if len(candidates) >= d.maxResults {
			break
		}
	}
	return candidates
}

// stripTags removes HTML tags and decodes common entities.
func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	return strings.TrimSpace(s)
}
