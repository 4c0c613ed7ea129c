package research

import "context"

// Candidate is a raw search result before evaluation.
type Candidate struct {
	URL     string
	Title   string
	Content string
}

// Source is a candidate that survived evaluation.
type Source struct {
	Candidate
	Summary string
	Score   float64 // 0-10
	Cycle   int     // cycle the source was discovered in
}

// Searcher retrieves candidate sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Enricher can replace a candidate's content with a fuller version,
// e.g. by fetching the page behind a thin search snippet.
type Enricher interface {
	Enrich(ctx context.Context, c Candidate) Candidate
}

// QueryGenerator produces search queries for one research cycle.
// poolDigest summarizes the sources gathered so far; it is empty on cycle 1.
type QueryGenerator interface {
	Queries(ctx context.Context, question string, cycle int, poolDigest string) ([]string, error)
}

// SourceEvaluator scores and summarizes a candidate against the research question.
type SourceEvaluator interface {
	Evaluate(ctx context.Context, question string, c Candidate, cycle int) (Source, error)
}

// ReportSynthesizer produces the final markdown report from the pooled sources.
type ReportSynthesizer interface {
	Report(ctx context.Context, question string, sources []Source, maxTokens int) (string, error)
}
