package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/allthingssecurity/deepsearch/internal/research"
)

// GoogleNews queries the Google News RSS search feed. Keyless, best
// suited to questions about recent coverage.
type GoogleNews struct {
	maxResults int
	client     *http.Client
	parser     *gofeed.Parser
}

// NewGoogleNews creates a Google News RSS backend.
func NewGoogleNews(maxResults int) *GoogleNews {
	return &GoogleNews{
		maxResults: maxResults,
		client:     &http.Client{Timeout: 20 * time.Second},
		parser:     gofeed.NewParser(),
	}
}

// Search fetches and parses the RSS search feed for the query.
func (g *GoogleNews) Search(ctx context.Context, query string) ([]research.Candidate, error) {
	feedURL := fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		url.QueryEscape(query),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &research.ProviderError{Provider: "googlenews", Op: "search", Err: err}
	}
	req.Header.Set("User-Agent", "deepsearch/1.0 (research assistant)")
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &research.ProviderError{Provider: "googlenews", Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &research.ProviderError{Provider: "googlenews", Op: "search", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	feed, err := g.parser.Parse(resp.Body)
	if err != nil {
		return nil, &research.ProviderError{Provider: "googlenews", Op: "search", Err: err}
	}

	var candidates []research.Candidate
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		title := strings.TrimSpace(item.Title)
		if link == "" || title == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		candidates = append(candidates, research.Candidate{
			URL:     link,
			Title:   title,
			Content: stripTags(content),
		})
		if len(candidates) >= g.maxResults {
			break
		}
	}
	return candidates, nil
}
