package pipeline

import (
	"context"
	"fmt"
	"time"

	"pokeflow/internal/aggregate"
	"pokeflow/internal/fetch"
	"pokeflow/internal/model"
	"pokeflow/internal/normalize"
	"pokeflow/internal/report"
	"pokeflow/internal/store"
	"pokeflow/internal/table"
)

// Run executes one analysis: fetch → normalize → aggregate → report.
// Each stage consumes an immutable input and produces a new immutable
// output; no state is shared across runs. Status and stage progress are
// tracked in the store when one is initialized. A failed run produces no
// output file.
func Run(ctx context.Context, runID string, spec model.RunSpec) error {
	start := time.Now()
	fmt.Printf("🚀 Starting run %s\n", runID)
	store.UpdateRunStatus(runID, "running")

	agg, err := execute(ctx, runID, spec)
	if err != nil {
		// Record the error before flipping the status, so a run observed
		// as failed always has its error on file.
		store.SaveRunError(runID, err)
		store.UpdateRunStatus(runID, "failed")
		return err
	}

	store.SaveRunResult(runID, agg)
	store.UpdateRunStatus(runID, "completed")
	fmt.Printf("🏁 Run %s completed in %v\n", runID, time.Since(start))
	return nil
}

func execute(ctx context.Context, runID string, spec model.RunSpec) (*aggregate.Aggregate, error) {
	// --- FETCH ---
	var records []map[string]interface{}
	err := trackStage(runID, "fetch", func() (int, error) {
		client := fetch.NewClient(spec.Source, spec.Fetch)
		var err error
		if spec.Source.FromID > 0 {
			records, err = client.FetchRange(ctx, spec.Source.Endpoint, spec.Source.FromID, spec.Source.ToID)
		} else {
			records, err = client.FetchAll(ctx, spec.Source.Endpoint, spec.Source.Params)
		}
		return len(records), err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch stage: %w", err)
	}

	// --- NORMALIZE ---
	var tbl *table.Table
	err = trackStage(runID, "normalize", func() (int, error) {
		var err error
		tbl, err = normalize.BuildTable(records, spec.Normalize)
		if tbl != nil {
			return tbl.Len(), err
		}
		return 0, err
	})
	if err != nil {
		return nil, fmt.Errorf("normalize stage: %w", err)
	}

	// --- AGGREGATE ---
	var agg *aggregate.Aggregate
	err = trackStage(runID, "aggregate", func() (int, error) {
		var err error
		agg, err = aggregate.Compute(tbl, spec.Aggregation)
		if agg != nil {
			return len(agg.Groups), err
		}
		return 0, err
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate stage: %w", err)
	}

	// --- REPORT ---
	err = trackStage(runID, "report", func() (int, error) {
		count := 0
		if spec.Export.File != "" {
			res, err := report.Write(agg, spec.Export.File, runID)
			if err != nil {
				return count, err
			}
			count = res.RecordCount
		}
		if spec.Export.Chart != "" {
			if _, err := report.WriteChartData(agg, spec.Export.Chart); err != nil {
				return count, err
			}
		}
		return count, nil
	})
	if err != nil {
		return nil, fmt.Errorf("report stage: %w", err)
	}

	return agg, nil
}

// trackStage runs one stage and records its progress in the store.
func trackStage(runID, stage string, fn func() (int, error)) error {
	startTime := time.Now()
	store.SaveStageProgress(runID, stage, "started", &startTime, nil, 0)

	count, err := fn()
	endTime := time.Now()
	if err != nil {
		store.SaveStageProgress(runID, stage, "failed", &startTime, &endTime, count)
		return err
	}
	store.SaveStageProgress(runID, stage, "completed", &startTime, &endTime, count)
	return nil
}
