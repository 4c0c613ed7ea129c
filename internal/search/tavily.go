package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/allthingssecurity/deepsearch/internal/research"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey     string
	depth      string // basic or advanced
	maxResults int
	client     *http.Client
}

// NewTavily creates a Tavily backend.
func NewTavily(apiKey, depth string, maxResults int) *Tavily {
	if depth == "" {
		depth = "advanced"
	}
	return &Tavily{
		apiKey:     apiKey,
		depth:      depth,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search posts a query to Tavily and returns candidates in
// provider-assigned relevance order.
func (t *Tavily) Search(ctx context.Context, query string) ([]research.Candidate, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, &research.ProviderError{Provider: "tavily", Op: "search", Err: errors.New("API key is missing")}
	}

	body := map[string]any{
		"api_key":             t.apiKey,
		"query":               query,
		"search_depth":        t.depth,
		"include_answer":      false,
		"include_raw_content": true,
		"max_results":         t.maxResults,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &research.ProviderError{Provider: "tavily", Op: "search", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &research.ProviderError{Provider: "tavily", Op: "search", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &research.ProviderError{Provider: "tavily", Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &research.ProviderError{Provider: "tavily", Op: "search", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var response struct {
		Results []struct {
			Title      string `json:"title"`
			URL        string `json:"url"`
			Content    string `json:"content"`
			RawContent string `json:"raw_content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &research.ProviderError{Provider: "tavily", Op: "search", Err: err}
	}

	var candidates []research.Candidate
	for _, r := range response.Results {
		if r.URL == "" {
			continue
		}
		content := r.RawContent
		if strings.TrimSpace(content) == "" {
			content = r.Content
		}
		candidates = append(candidates, research.Candidate{
			URL:     r.URL,
			Title:   strings.TrimSpace(r.Title),
			Content: strings.TrimSpace(content),
		})
		if len(candidates) >= t.maxResults {
			break
		}
	}
	return candidates, nil
}
