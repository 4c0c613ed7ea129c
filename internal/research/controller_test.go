package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakePlanner returns a fixed set of queries per cycle.
type fakePlanner struct {
	perCycle map[int][]string
	err      error
	calls    int
}

func (f *fakePlanner) Queries(_ context.Context, _ string, cycle int, _ string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.perCycle[cycle], nil
}

// fakeSearcher returns fixed candidates per query.
type fakeSearcher struct {
	results map[string][]Candidate
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]Candidate, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

// fakeGrader scores candidates from a fixed table, failing the rest.
type fakeGrader struct {
	scores  map[string]float64
	failAll bool
}

func (f *fakeGrader) Evaluate(_ context.Context, _ string, c Candidate, cycle int) (Source, error) {
	if f.failAll {
		return Source{}, &ParseError{Stage: "evaluation", Raw: "garbage"}
	}
	score, ok := f.scores[c.URL]
	if !ok {
		return Source{}, &ParseError{Stage: "evaluation", Raw: "garbage"}
	}
	return Source{Candidate: c, Summary: "summary of " + c.URL, Score: score, Cycle: cycle}, nil
}

// fakeWriter renders a minimal report citing every source it was given.
type fakeWriter struct {
	err     error
	sources []Source
}

func (f *fakeWriter) Report(_ context.Context, question string, sources []Source, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sources = sources
	var refs []string
	for i, s := range sources {
		refs = append(refs, fmt.Sprintf("[%d] %s - %s", i+1, s.Title, s.URL))
	}
	return "# Report\n\nAnswer to " + question + " [1]\n\n## References\n" + strings.Join(refs, "\n"), nil
}

func candidates(urls ...string) []Candidate {
	var out []Candidate
	for _, u := range urls {
		out = append(out, Candidate{URL: u, Title: "T " + u, Content: "content"})
	}
	return out
}

func testConfig() Config {
	return Config{Budget: 2, MaxQueries: 2, MaxSources: 10, MaxTokens: 1024}
}

func TestRunTwoCyclesReportCitesPooledSources(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"remote work housing prices", "remote work urban migration"},
		2: {"remote work office vacancy", "remote work suburb demand"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"remote work housing prices":  candidates("https://a.com", "https://b.com", "https://c.com"),
		"remote work urban migration": candidates("https://d.com", "https://e.com", "https://f.com"),
		"remote work office vacancy":  candidates("https://g.com", "https://h.com", "https://i.com"),
		"remote work suburb demand":   candidates("https://j.com", "https://k.com", "https://l.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{
		"https://a.com": 1, "https://b.com": 2, "https://c.com": 3,
		"https://d.com": 4, "https://e.com": 5, "https://f.com": 6,
		"https://g.com": 7, "https://h.com": 8, "https://i.com": 9,
		"https://j.com": 10, "https://k.com": 5.5, "https://l.com": 6.5,
	}}
	writer := &fakeWriter{}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "impact of remote work on urban housing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Cycles != 2 {
		t.Errorf("expected 2 cycles, got %d", result.Cycles)
	}
	if len(result.Sources) > 10 {
		t.Errorf("pool exceeded cap: %d", len(result.Sources))
	}
	if result.Evaluated != 12 {
		t.Errorf("expected 12 evaluations, got %d", result.Evaluated)
	}

	// The report must only cite sources present in the final pool.
	pooled := make(map[string]struct{})
	for _, s := range result.Sources {
		pooled[s.URL] = struct{}{}
	}
	for _, s := range writer.sources {
		if _, ok := pooled[s.URL]; !ok {
			t.Errorf("writer saw source outside the pool: %s", s.URL)
		}
	}
	if !strings.Contains(result.Report, "## References") {
		t.Error("expected references section in report")
	}
}

func TestRunEmptyFirstCycleSecondProceeds(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"q1", "q2"},
		2: {"q3"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		// cycle 1 queries return nothing
		"q3": candidates("https://late.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{"https://late.com": 7}}
	writer := &fakeWriter{}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Sources) != 1 || result.Sources[0].URL != "https://late.com" {
		t.Errorf("expected pool to reflect only cycle 2, got %+v", result.Sources)
	}
	if result.Sources[0].Cycle != 2 {
		t.Errorf("expected source discovered in cycle 2, got %d", result.Sources[0].Cycle)
	}
}

func TestRunAllEvaluationsFailEndsInExhaustion(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"q1"},
		2: {"q2"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"q1": candidates("https://a.com"),
		"q2": candidates("https://b.com"),
	}}
	grader := &fakeGrader{failAll: true}
	writer := &fakeWriter{}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	_, err := c.Run(context.Background(), "question")
	if err == nil {
		t.Fatal("expected error for empty pool")
	}
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
	if writer.sources != nil {
		t.Error("no report should be synthesized from an empty pool")
	}
}

func TestRunResurfacedURLHigherScoreWins(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"q1"},
		2: {"q2"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"q1": candidates("https://dup.com"),
		"q2": candidates("https://dup.com", "https://other.com"),
	}}
	// The same URL scores 5 in cycle 1 and 8 in cycle 2.
	cycleScores := map[int]float64{1: 5, 2: 8}
	grader := &cycleAwareGrader{scores: cycleScores}
	writer := &fakeWriter{}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var dup *Source
	for i := range result.Sources {
		if result.Sources[i].URL == "https://dup.com" {
			dup = &result.Sources[i]
		}
	}
	if dup == nil {
		t.Fatal("expected duplicated URL in pool")
	}
	if dup.Score != 8 || dup.Cycle != 2 {
		t.Errorf("expected cycle-2 score-8 entry retained, got score %f cycle %d", dup.Score, dup.Cycle)
	}
}

type cycleAwareGrader struct {
	scores map[int]float64
}

func (g *cycleAwareGrader) Evaluate(_ context.Context, _ string, c Candidate, cycle int) (Source, error) {
	return Source{Candidate: c, Summary: "s", Score: g.scores[cycle], Cycle: cycle}, nil
}

func TestRunSkipsRepeatedQueries(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"same query"},
		2: {"same query", "fresh query"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"same query":  candidates("https://a.com"),
		"fresh query": candidates("https://b.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{"https://a.com": 5, "https://b.com": 6}}
	writer := &fakeWriter{}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(searcher.queries) != 2 {
		t.Errorf("expected 2 searches (repeat skipped), got %d: %v", len(searcher.queries), searcher.queries)
	}
	if len(result.QueriesUsed) != 2 {
		t.Errorf("expected 2 distinct queries used, got %v", result.QueriesUsed)
	}
}

func TestRunStopsAfterTwoStaleCycles(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"q1"}, 2: {"q2"}, 3: {"q3"}, 4: {"q4"}, 5: {"q5"},
	}}
	// Only cycle 1 finds anything; later cycles return nothing.
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"q1": candidates("https://a.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{"https://a.com": 7}}
	writer := &fakeWriter{}

	cfg := testConfig()
	cfg.Budget = 5
	c := NewController(cfg, planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Cycles != 3 {
		t.Errorf("expected stop after cycle 3 (two stale cycles), got %d", result.Cycles)
	}
	if result.EarlyStop == "" {
		t.Error("expected early stop reason to be recorded")
	}
}

func TestRunQualityFloorStopsEarly(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{
		1: {"q1"}, 2: {"q2"}, 3: {"q3"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"q1": candidates("https://a.com", "https://b.com"),
		"q2": candidates("https://c.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{
		"https://a.com": 9, "https://b.com": 8, "https://c.com": 9.5,
	}}
	writer := &fakeWriter{}

	cfg := Config{Budget: 3, MaxQueries: 2, MaxSources: 2, MaxTokens: 1024, QualityFloor: 7}
	c := NewController(cfg, planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Cycles != 1 {
		t.Errorf("expected quality-floor stop after cycle 1, got %d cycles", result.Cycles)
	}
	if !strings.Contains(result.EarlyStop, "pool full") {
		t.Errorf("expected quality-floor reason, got %q", result.EarlyStop)
	}
}

func TestRunQueryGenerationFailureSkipsCycle(t *testing.T) {
	planner := &flakyPlanner{failCycles: map[int]bool{1: true}, queries: map[int][]string{
		2: {"q2"},
	}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"q2": candidates("https://a.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{"https://a.com": 6}}
	writer := &fakeWriter{}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	result, err := c.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sources) != 1 {
		t.Errorf("expected cycle 2 to proceed after cycle 1 skipped, got %d sources", len(result.Sources))
	}
}

type flakyPlanner struct {
	failCycles map[int]bool
	queries    map[int][]string
}

func (f *flakyPlanner) Queries(_ context.Context, _ string, cycle int, _ string) ([]string, error) {
	if f.failCycles[cycle] {
		return nil, &ProviderError{Provider: "llm", Op: "generate queries", Err: errors.New("boom")}
	}
	return f.queries[cycle], nil
}

func TestRunSynthesisFailureIsFatal(t *testing.T) {
	planner := &fakePlanner{perCycle: map[int][]string{1: {"q1"}, 2: {"q2"}}}
	searcher := &fakeSearcher{results: map[string][]Candidate{
		"q1": candidates("https://a.com"),
	}}
	grader := &fakeGrader{scores: map[string]float64{"https://a.com": 7}}
	writer := &fakeWriter{err: &ProviderError{Provider: "llm", Op: "synthesize report", Err: errors.New("down")}}

	c := NewController(testConfig(), planner, searcher, grader, writer)
	_, err := c.Run(context.Background(), "question")
	if err == nil {
		t.Fatal("expected synthesis failure to surface")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Errorf("expected ProviderError in chain, got %v", err)
	}
}

func TestRunEmptyQuestionRejected(t *testing.T) {
	c := NewController(testConfig(), &fakePlanner{}, &fakeSearcher{}, &fakeGrader{}, &fakeWriter{})
	if _, err := c.Run(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty question")
	}
}
