package fetch

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/allthingssecurity/deepsearch/internal/research"
)

// Candidates whose snippet is already at least this long are left alone.
const defaultMinContentLen = 600

// Enricher replaces thin search snippets with full page text extracted
// via HTTP + readability. Fetch failures are never fatal: the snippet
// is kept and the candidate proceeds to evaluation as-is.
type Enricher struct {
	minContentLen int
	client        *http.Client
	failedDomains map[string]struct{}
}

// NewEnricher creates a content enricher. minContentLen is the snippet
// length below which a full fetch is attempted; 0 uses the default.
func NewEnricher(timeout time.Duration, minContentLen int) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if minContentLen <= 0 {
		minContentLen = defaultMinContentLen
	}
	return &Enricher{
		minContentLen: minContentLen,
		failedDomains: make(map[string]struct{}),
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Enrich returns the candidate with fuller content when the snippet is
// thin and the page is fetchable. A domain that fails once is not
// retried for the rest of the run.
func (e *Enricher) Enrich(ctx context.Context, c research.Candidate) research.Candidate {
	if len(c.Content) >= e.minContentLen {
		return c
	}

	u, _ := url.Parse(c.URL)
	domain := ""
	if u != nil {
		domain = strings.ToLower(u.Host)
	}
	if _, failed := e.failedDomains[domain]; failed {
		return c
	}

	text, err := e.fetchPageText(ctx, c.URL)
	if err != nil {
		if domain != "" {
			e.failedDomains[domain] = struct{}{}
		}
		log.Printf("Content fetch failed for %s, keeping snippet: %v", c.URL, err)
		return c
	}
	if text == "" {
		log.Printf("No extractable content from %s, keeping snippet", c.URL)
		return c
	}

	c.Content = text
	return c
}

func (e *Enricher) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "deepsearch/1.0 (research assistant)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(pageURL)
	page, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(page.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
