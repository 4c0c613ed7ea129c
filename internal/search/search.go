// Package search implements the web-retrieval boundary: each backend
// turns a query string into an ordered list of research.Candidate.
// Empty result sets are valid; transport failures surface as
// research.ProviderError and are skipped per query by the controller.
package search

import (
	"fmt"
	"os"
	"strings"

	"github.com/allthingssecurity/deepsearch/internal/research"
)

// Options configures the search backend.
type Options struct {
	Provider   string // tavily, brave, duckduckgo, newsapi, googlenews
	APIKeyEnv  string // environment variable holding the API key
	Depth      string // tavily search depth: basic or advanced
	MaxResults int    // per-query result cap, default 5
}

const defaultMaxResults = 5

// New creates the configured search backend.
func New(opts Options) (research.Searcher, error) {
	if opts.MaxResults < 1 {
		opts.MaxResults = defaultMaxResults
	}
	apiKey := ""
	if opts.APIKeyEnv != "" {
		apiKey = os.Getenv(opts.APIKeyEnv)
	}

	switch strings.ToLower(opts.Provider) {
	case "", "tavily":
		return NewTavily(apiKey, opts.Depth, opts.MaxResults), nil
	case "brave":
		return NewBrave(apiKey, opts.MaxResults), nil
	case "duckduckgo", "ddg":
		return NewDuckDuckGo(opts.MaxResults), nil
	case "newsapi":
		return NewNewsAPI(apiKey, opts.MaxResults), nil
	case "googlenews":
		return NewGoogleNews(opts.MaxResults), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", opts.Provider)
	}
}
