package model

import "time"

// Source describes the API endpoint a run pulls records from.
type Source struct {
	BaseURL  string            `json:"baseUrl" yaml:"base_url"`
	Endpoint string            `json:"endpoint" yaml:"endpoint"`
	Params   map[string]string `json:"params,omitempty" yaml:"params"`

	// ResultsPath and NextPath locate the record array and the next-page
	// link inside a paginated envelope. Dot-joined paths, e.g. "results".
	ResultsPath string `json:"resultsPath,omitempty" yaml:"results_path"`
	NextPath    string `json:"nextPath,omitempty" yaml:"next_path"`

	// FromID/ToID switch the fetcher into id-range mode: one GET per
	// endpoint/{id} instead of following pagination links.
	FromID int `json:"fromId,omitempty" yaml:"from_id"`
	ToID   int `json:"toId,omitempty" yaml:"to_id"`
}

// Fetch holds transport-level knobs for a run.
type Fetch struct {
	RetryCount     int     `json:"retryCount" yaml:"retry_count"`
	TimeoutSeconds float64 `json:"timeoutSeconds" yaml:"timeout_seconds"`
	PageLimit      int     `json:"pageLimit" yaml:"page_limit"` // 0 = unlimited
	Prefetch       int     `json:"prefetch" yaml:"prefetch"`    // id-range mode only
}

// Normalize configures how raw records become a flat table.
type Normalize struct {
	ExpandLists   bool `json:"expandLists" yaml:"expand_lists"`
	CoerceStrings bool `json:"coerceStrings" yaml:"coerce_strings"`
}

// Stat is one (source column, statistic) pair of an aggregation request.
type Stat struct {
	Column string `json:"column" yaml:"column"`
	Stat   string `json:"stat" yaml:"stat"`
}

// Aggregation defines how the normalized table is grouped and summarized.
type Aggregation struct {
	GroupBy string `json:"groupBy" yaml:"group_by"`
	Stats   []Stat `json:"stats" yaml:"stats"`
}

// Export defines where results are written.
type Export struct {
	File  string `json:"file" yaml:"file"`   // .csv or .json
	Chart string `json:"chart" yaml:"chart"` // optional chart-data handoff
}

// RunSpec is the full configuration of one analysis run. It is the body
// of POST /api/v1/runs and what the CLI assembles from flags and config.
type RunSpec struct {
	Source      Source      `json:"source" yaml:"source"`
	Fetch       Fetch       `json:"fetch" yaml:"fetch"`
	Normalize   Normalize   `json:"normalize" yaml:"normalize"`
	Aggregation Aggregation `json:"aggregation" yaml:"aggregation"`
	Export      Export      `json:"export" yaml:"export"`
}

// RunSummary is the per-run bookkeeping row kept by the store.
type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StageProgress records one pipeline stage of a run.
type StageProgress struct {
	Stage       string     `json:"stage"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	RecordCount int        `json:"recordCount"`
}
