package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/allthingssecurity/deepsearch/internal/llm"
)

const evaluatePrompt = `You are evaluating a web source for a research project.

Research topic: %s

Source title: %s
Source URL: %s
Content:
%s

Extract and synthesize only the content relevant to the research topic, then score the source's relevance and quality.

Respond with ONLY this JSON:
{
    "relevance_score": 7,
    "summary": "Two to four sentences covering what this source contributes to the topic."
}

relevance_score: 0-10 where 10 = directly answers the topic with substantive evidence, 0 = unrelated.`

// Content longer than this is truncated before prompting; search
// snippets and readability extractions both fit comfortably.
const maxContentChars = 4000

// Summaries are kept short so dozens of them fit in one synthesis prompt.
const maxSummaryChars = 700

// Grader scores and summarizes candidates with an LLM.
type Grader struct {
	provider llm.Provider
}

// NewGrader creates a source evaluator.
func NewGrader(provider llm.Provider) *Grader {
	return &Grader{provider: provider}
}

// Evaluate turns a candidate into a scored, summarized source. A
// malformed response fails only this candidate.
func (g *Grader) Evaluate(ctx context.Context, question string, c Candidate, cycle int) (Source, error) {
	content := strings.TrimSpace(c.Content)
	if content == "" {
		content = c.Title
	}
	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "..."
	}

	prompt := fmt.Sprintf(evaluatePrompt, question, c.Title, c.URL, content)
	responseText, err := g.provider.Generate(ctx, prompt, 512)
	if err != nil {
		return Source{}, &ProviderError{Provider: "llm", Op: "evaluate source", Err: err}
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return Source{}, &ParseError{Stage: "evaluation", Raw: responseText}
	}

	summary := strings.TrimSpace(getString(parsed, "summary", ""))
	if summary == "" {
		return Source{}, &ParseError{Stage: "evaluation", Raw: responseText}
	}
	if len(summary) > maxSummaryChars {
		summary = summary[:maxSummaryChars] + "..."
	}

	score, ok := getFloat(parsed, "relevance_score")
	if !ok {
		return Source{}, &ParseError{Stage: "evaluation", Raw: responseText}
	}
	if score < 0 {
		score = 0
	} else if score > 10 {
		score = 10
	}

	return Source{
		Candidate: c,
		Summary:   summary,
		Score:     score,
		Cycle:     cycle,
	}, nil
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func getFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
