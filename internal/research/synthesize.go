package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/allthingssecurity/deepsearch/internal/llm"
)

const reportPrompt = `You are writing the final report for a research project.

Research topic: %s

Numbered sources:
%s

Create a markdown research report with a title, an introduction, analysis sections, and a conclusion. Write flowing prose, not bullet lists. Cite evidence inline with bracketed source numbers like [2] that refer to the numbered sources above. Only cite sources you actually draw on, and never reference a source that is not in the list.

End the report with a "## References" section listing only the sources you cited, one per line in the form:
[N] Title - URL`

// Writer produces the final markdown report with an LLM.
type Writer struct {
	provider llm.Provider
}

// NewWriter creates a report synthesizer.
func NewWriter(provider llm.Provider) *Writer {
	return &Writer{provider: provider}
}

// Report synthesizes a markdown report from the pooled sources. The
// length cap is enforced by constraining the generation request, not
// by truncating afterward, so the document is never cut mid-citation.
func (w *Writer) Report(ctx context.Context, question string, sources []Source, maxTokens int) (string, error) {
	prompt := fmt.Sprintf(reportPrompt, question, formatSources(sources))

	responseText, err := w.provider.Generate(ctx, prompt, maxTokens)
	if err != nil {
		return "", &ProviderError{Provider: "llm", Op: "synthesize report", Err: err}
	}

	report := strings.TrimSpace(responseText)
	if report == "" {
		return "", &ParseError{Stage: "synthesis", Raw: responseText}
	}
	return report, nil
}

func formatSources(sources []Source) string {
	var parts []string
	for i, s := range sources {
		parts = append(parts, fmt.Sprintf("[%d] %s\n  URL: %s\n  Summary: %s",
			i+1, s.Title, s.URL, s.Summary))
	}
	return strings.Join(parts, "\n\n")
}
