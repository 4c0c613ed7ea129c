package research

import (
	"context"
	"fmt"

	"github.com/allthingssecurity/deepsearch/internal/llm"
)

const planPrompt = `You are a strategic research planner. Break down the research topic below into focused web search queries.

Research topic: %s

%s

Generate up to %d distinct search queries. Each query should target a different angle of the topic and be phrased the way an expert would type it into a search engine.

Respond with ONLY this JSON:
{
    "queries": ["first search query", "second search query"]
}`

const firstCycleContext = "This is the first research cycle; no sources have been gathered yet."

const followUpContext = `Sources gathered in earlier cycles:
%s

Generate follow-up queries that close the remaining gaps in the evidence. Do not repeat angles the gathered sources already cover.`

// Planner generates search queries with an LLM.
type Planner struct {
	provider   llm.Provider
	maxQueries int
}

// NewPlanner creates a query generator capped at maxQueries per cycle.
func NewPlanner(provider llm.Provider, maxQueries int) *Planner {
	if maxQueries < 1 {
		maxQueries = 1
	}
	return &Planner{provider: provider, maxQueries: maxQueries}
}

// Queries generates up to maxQueries search queries for one cycle.
// poolDigest carries the summaries gathered so far and steers later
// cycles toward gaps; it is empty on the first cycle.
func (p *Planner) Queries(ctx context.Context, question string, cycle int, poolDigest string) ([]string, error) {
	cycleContext := firstCycleContext
	if poolDigest != "" {
		cycleContext = fmt.Sprintf(followUpContext, poolDigest)
	}

	prompt := fmt.Sprintf(planPrompt, question, cycleContext, p.maxQueries)
	responseText, err := p.provider.Generate(ctx, prompt, 512)
	if err != nil {
		return nil, &ProviderError{Provider: "llm", Op: "generate queries", Err: err}
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return nil, &ParseError{Stage: "query generation", Raw: responseText}
	}

	queries := llm.StringList(parsed, "queries")
	if len(queries) == 0 {
		return nil, &ParseError{Stage: "query generation", Raw: responseText}
	}
	if len(queries) > p.maxQueries {
		queries = queries[:p.maxQueries]
	}
	return queries, nil
}
