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

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave calls the Brave Search API. The free tier allows one request
// per second, so consecutive searches are paced client-side.
type Brave struct {
	apiKey     string
	maxResults int
	client     *http.Client
	lastCall   time.Time
}

// NewBrave creates a Brave backend.
func NewBrave(apiKey string, maxResults int) *Brave {
	return &Brave{
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Search executes a Brave query.
func (b *Brave) Search(ctx context.Context, query string) ([]research.Candidate, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return nil, &research.ProviderError{Provider: "brave", Op: "search", Err: errors.New("API key is missing")}
	}

	// Queries run sequentially, so a simple pace against the previous
	// call keeps us under the 1 req/s limit.
	if wait := time.Until(b.lastCall.Add(time.Second)); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.lastCall = time.Now()

	endpoint := braveEndpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &research.ProviderError{Provider: "brave", Op: "search", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &research.ProviderError{Provider: "brave", Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &research.ProviderError{Provider: "brave", Op: "search", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &research.ProviderError{Provider: "brave", Op: "search", Err: err}
	}

	var candidates []research.Candidate
	for _, r := range payload.Web.Results {
		if r.URL == "" {
			continue
		}
		candidates = append(candidates, research.Candidate{
			URL:     r.URL,
			Title:   strings.TrimSpace(r.Title),
			Content: stripTags(r.Description),
		})
		if len(candidates) >= b.maxResults {
			break
		}
	}
	return candidates, nil
}
