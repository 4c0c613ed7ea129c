package database

// Run is an archived research run.
type Run struct {
	ID             int64
	Question       string
	ReportMarkdown string
	CycleCount     int
	SourceCount    int
	QueryCount     int
	EarlyStop      *string
	CreatedAt      *string
}

// RunSource is one pooled source of an archived run, in rank order.
type RunSource struct {
	ID              int64
	RunID           int64
	Rank            int
	URL             string
	Title           string
	Summary         string
	RelevanceScore  float64
	CycleDiscovered int
}

// Stats contains aggregate archive statistics.
type Stats struct {
	TotalRuns    int
	TotalSources int
	LastRunAt    string
}
