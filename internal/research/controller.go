package research

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Config holds the knobs for one research run. It is immutable once
// handed to the controller.
type Config struct {
	Budget       int     // maximum number of cycles
	MaxQueries   int     // queries per cycle
	MaxSources   int     // retained source cap
	MaxTokens    int     // report length cap
	QualityFloor float64 // 0 disables the full-pool quality stop
}

// RunResult holds the outcome of a completed research run.
type RunResult struct {
	Question    string
	Report      string
	Sources     []Source // final pool, rank order
	Cycles      int      // cycles actually executed
	QueriesUsed []string
	Evaluated   int    // candidates that survived evaluation
	EarlyStop   string // reason, empty when the full budget ran
}

// Controller drives the research loop: generate queries, retrieve,
// evaluate, merge into the pool, repeat up to Budget cycles, then
// synthesize once. All provider calls are sequential; the pool is
// touched exactly once per cycle, after that cycle's evaluations.
type Controller struct {
	cfg      Config
	planner  QueryGenerator
	searcher Searcher
	grader   SourceEvaluator
	writer   ReportSynthesizer
	enricher Enricher
}

// NewController creates a research controller.
func NewController(cfg Config, planner QueryGenerator, searcher Searcher, grader SourceEvaluator, writer ReportSynthesizer) *Controller {
	if cfg.Budget < 1 {
		cfg.Budget = 1
	}
	if cfg.MaxQueries < 1 {
		cfg.MaxQueries = 1
	}
	if cfg.MaxSources < 1 {
		cfg.MaxSources = 1
	}
	if cfg.MaxTokens < 1 {
		cfg.MaxTokens = 4096
	}
	return &Controller{
		cfg:      cfg,
		planner:  planner,
		searcher: searcher,
		grader:   grader,
		writer:   writer,
	}
}

// SetEnricher installs an optional content enricher applied to each
// candidate before evaluation.
func (c *Controller) SetEnricher(e Enricher) {
	c.enricher = e
}

// Run executes the full research loop for a question and returns the
// synthesized report with its supporting pool.
//
// Failure policy: a failed query generation skips that cycle; a failed
// search skips that query; a failed evaluation skips that candidate.
// Two kinds of failure are fatal: an empty pool after all cycles
// (ErrNoSources) and a failed or empty synthesis.
//
// Early stop: the loop ends before the budget when two consecutive
// cycles leave the pool unimproved, or when the pool is full and every
// retained score is at or above QualityFloor.
func (c *Controller) Run(ctx context.Context, question string) (*RunResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("research question is empty")
	}

	pool := NewPool(c.cfg.MaxSources)
	used := make(map[string]struct{})
	result := &RunResult{Question: question}
	staleCycles := 0

	for cycle := 1; cycle <= c.cfg.Budget; cycle++ {
		result.Cycles = cycle
		log.Printf("[Cycle %d/%d] Generating queries...", cycle, c.cfg.Budget)

		queries, err := c.planner.Queries(ctx, question, cycle, pool.Digest())
		if err != nil {
			log.Printf("[Cycle %d] Query generation failed, skipping cycle: %v", cycle, err)
			staleCycles++
			if staleCycles >= 2 {
				result.EarlyStop = "two consecutive cycles without pool improvement"
				break
			}
			continue
		}

		batch := c.runCycle(ctx, question, cycle, queries, used, result)
		improved := pool.Merge(batch)
		log.Printf("[Cycle %d] %d evaluated, %d pool improvements, pool size %d",
			cycle, len(batch), improved, pool.Len())

		if improved == 0 {
			staleCycles++
		} else {
			staleCycles = 0
		}
		if staleCycles >= 2 {
			result.EarlyStop = "two consecutive cycles without pool improvement"
			break
		}
		if c.cfg.QualityFloor > 0 && pool.Full() && pool.MinScore() >= c.cfg.QualityFloor {
			result.EarlyStop = fmt.Sprintf("pool full with every score >= %.1f", c.cfg.QualityFloor)
			break
		}
	}

	if pool.Len() == 0 {
		return nil, fmt.Errorf("after %d cycles: %w", result.Cycles, ErrNoSources)
	}

	log.Printf("Synthesizing report from %d sources...", pool.Len())
	report, err := c.writer.Report(ctx, question, pool.Sources(), c.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("synthesizing report (pool held %d sources): %w", pool.Len(), err)
	}

	result.Report = report
	result.Sources = pool.Sources()
	return result, nil
}

// runCycle retrieves and evaluates candidates for one cycle's queries
// and returns the evaluated batch. The pool is not touched here.
func (c *Controller) runCycle(ctx context.Context, question string, cycle int, queries []string, used map[string]struct{}, result *RunResult) []Source {
	var batch []Source
	for _, query := range queries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if _, seen := used[query]; seen {
			log.Printf("[Cycle %d] Skipping repeated query: %s", cycle, query)
			continue
		}
		used[query] = struct{}{}
		result.QueriesUsed = append(result.QueriesUsed, query)

		candidates, err := c.searcher.Search(ctx, query)
		if err != nil {
			log.Printf("[Cycle %d] Search failed for %q, skipping query: %v", cycle, query, err)
			continue
		}
		log.Printf("[Cycle %d] %q returned %d candidates", cycle, query, len(candidates))

		for _, cand := range candidates {
			if cand.URL == "" {
				continue
			}
			if c.enricher != nil {
				cand = c.enricher.Enrich(ctx, cand)
			}
			src, err := c.grader.Evaluate(ctx, question, cand, cycle)
			if err != nil {
				log.Printf("[Cycle %d] Evaluation failed for %s, skipping candidate: %v", cycle, cand.URL, err)
				continue
			}
			result.Evaluated++
			batch = append(batch, src)
		}
	}
	return batch
}
