package database

import (
	"database/sql"
	"fmt"
)

// InsertRun archives a completed run with its pooled sources. Sources
// must be passed in rank order.
func (db *DB) InsertRun(run Run, sources []RunSource) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert run: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO runs (question, report_markdown, cycle_count, source_count, query_count, early_stop)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Question, run.ReportMarkdown, run.CycleCount, len(sources), run.QueryCount, run.EarlyStop,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for i, s := range sources {
		_, err := tx.Exec(`
			INSERT INTO run_sources (run_id, rank, url, title, summary, relevance_score, cycle_discovered)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i+1, s.URL, s.Title, s.Summary, s.RelevanceScore, s.CycleDiscovered,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting run source %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert run: %w", err)
	}
	return runID, nil
}

// GetRun returns a run by ID, or nil when it does not exist.
func (db *DB) GetRun(id int64) (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, question, report_markdown, cycle_count, source_count, query_count, early_stop, created_at
		FROM runs WHERE id = ?`, id)

	var r Run
	err := row.Scan(&r.ID, &r.Question, &r.ReportMarkdown, &r.CycleCount, &r.SourceCount, &r.QueryCount, &r.EarlyStop, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return &r, nil
}

// GetAllRuns returns all archived runs, newest first.
func (db *DB) GetAllRuns() ([]Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, question, report_markdown, cycle_count, source_count, query_count, early_stop, created_at
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Question, &r.ReportMarkdown, &r.CycleCount, &r.SourceCount, &r.QueryCount, &r.EarlyStop, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunSources returns a run's pooled sources in rank order.
func (db *DB) GetRunSources(runID int64) ([]RunSource, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, rank, url, title, summary, relevance_score, cycle_discovered
		FROM run_sources WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing run sources: %w", err)
	}
	defer rows.Close()

	var sources []RunSource
	for rows.Next() {
		var s RunSource
		if err := rows.Scan(&s.ID, &s.RunID, &s.Rank, &s.URL, &s.Title, &s.Summary, &s.RelevanceScore, &s.CycleDiscovered); err != nil {
			return nil, fmt.Errorf("scanning run source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteRun removes a run and its sources.
func (db *DB) DeleteRun(id int64) error {
	if _, err := db.conn.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting run %d: %w", id, err)
	}
	return nil
}

// GetStats returns aggregate archive statistics.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&stats.TotalRuns); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM run_sources").Scan(&stats.TotalSources); err != nil {
		return nil, fmt.Errorf("counting sources: %w", err)
	}

	var last sql.NullString
	if err := db.conn.QueryRow("SELECT MAX(created_at) FROM runs").Scan(&last); err != nil {
		return nil, fmt.Errorf("reading last run time: %w", err)
	}
	if last.Valid {
		stats.LastRunAt = last.String
	}
	return stats, nil
}
