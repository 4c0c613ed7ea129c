package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/allthingssecurity/deepsearch/internal/research"
)

const newsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPI searches recent news coverage via newsapi.org. Useful when
// the research question concerns current events.
type NewsAPI struct {
	apiKey     string
	maxResults int
	client     *http.Client
}

// NewNewsAPI creates a NewsAPI backend.
func NewNewsAPI(apiKey string, maxResults int) *NewsAPI {
	return &NewsAPI{
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search queries the everything endpoint sorted by relevancy.
func (n *NewsAPI) Search(ctx context.Context, query string) ([]research.Candidate, error) {
	if n.apiKey == "" {
		return nil, &research.ProviderError{Provider: "newsapi", Op: "search", Err: errors.New("API key is missing")}
	}

	params := url.Values{
		"q":        {query},
		"language": {"en"},
		"pageSize": {fmt.Sprintf("%d", n.maxResults)},
		"sortBy":   {"relevancy"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, newsAPIEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &research.ProviderError{Provider: "newsapi", Op: "search", Err: err}
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, &research.ProviderError{Provider: "newsapi", Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &research.ProviderError{Provider: "newsapi", Op: "search", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Content     string `json:"content"`
			Description string `json:"description"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &research.ProviderError{Provider: "newsapi", Op: "search", Err: err}
	}
	if result.Status != "ok" {
		return nil, &research.ProviderError{Provider: "newsapi", Op: "search", Err: fmt.Errorf("status %s", result.Status)}
	}

	var candidates []research.Candidate
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		// NewsAPI marks withdrawn articles with placeholder values.
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		content := a.Content
		if content == "" {
			content = a.Description
		}
		candidates = append(candidates, research.Candidate{
			URL:     a.URL,
			Title:   strings.TrimSpace(a.Title),
			Content: strings.TrimSpace(content),
		})
		if len(candidates) >= n.maxResults {
			break
		}
	}
	return candidates, nil
}
