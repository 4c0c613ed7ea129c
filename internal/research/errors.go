package research

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when every cycle completed without a single
// source surviving evaluation. No honest report can be synthesized from
// an empty pool, so this is fatal.
var ErrNoSources = errors.New("no sources survived evaluation")

// ProviderError reports a transport or auth failure talking to an
// external API. The controller skips the failed query or candidate and
// never retries.
type ProviderError struct {
	Provider string // e.g. "tavily", "openai"
	Op       string // e.g. "search", "generate"
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a provider response that did not match the
// expected structure. Treated with the same skip granularity as
// ProviderError.
type ParseError struct {
	Stage string // e.g. "query generation", "evaluation"
	Raw   string // truncated raw response, for log context
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("%s: unparsable response: %q", e.Stage, raw)
}
