package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pokeflow/internal/aggregate"
	"pokeflow/internal/table"
)

// IOError wraps an output write failure together with the target path.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("report: cannot write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Result describes one completed export operation.
type Result struct {
	Type        string    `json:"type"` // "csv", "json", "chart"
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	ExportedAt  time.Time `json:"exported_at"`
}

// Header builds the output header: group key column first, then one
// `<column>_<stat>` per requested statistic, in request order.
func Header(agg *aggregate.Aggregate) []string {
	header := []string{agg.GroupBy}
	for _, s := range agg.Stats {
		header = append(header, aggregate.ColumnName(s))
	}
	return header
}

// Write exports an aggregate to path, dispatching on the file extension
// (.json for JSON, anything else is CSV). The file is written to a
// temporary name and renamed into place, so a failed run leaves no
// partial output behind.
func Write(agg *aggregate.Aggregate, path, runID string) (Result, error) {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return WriteJSON(agg, path, runID)
	}
	return WriteCSV(agg, path)
}

// WriteCSV writes the aggregate as UTF-8 delimited text, one row per
// group. Undefined statistics render as the NaN literal.
func WriteCSV(agg *aggregate.Aggregate, path string) (Result, error) {
	rows := [][]string{Header(agg)}
	for _, g := range agg.Groups {
		row := []string{table.FormatValue(g.Key)}
		for _, v := range g.Values {
			row = append(row, formatStat(v))
		}
		rows = append(rows, row)
	}

	err := writeFileAtomic(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}

	fmt.Printf("💾 Wrote %d groups to %s\n", len(agg.Groups), path)
	return Result{Type: "csv", Path: path, RecordCount: len(agg.Groups), ExportedAt: time.Now().UTC()}, nil
}

// WriteJSON writes the aggregate with an export metadata envelope.
func WriteJSON(agg *aggregate.Aggregate, path, runID string) (Result, error) {
	payload := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":      runID,
			"exported_at": time.Now().UTC(),
			"group_count": len(agg.Groups),
		},
		"columns": Header(agg),
		"data":    agg,
	}

	err := writeFileAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	})
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}

	fmt.Printf("💾 Wrote %d groups to %s\n", len(agg.Groups), path)
	return Result{Type: "json", Path: path, RecordCount: len(agg.Groups), ExportedAt: time.Now().UTC()}, nil
}

// WriteChartData hands the aggregate to an external plotting collaborator
// as a flat series file: group keys as labels, one numeric series per
// statistic. Chart rendering itself is the collaborator's job.
func WriteChartData(agg *aggregate.Aggregate, path string) (Result, error) {
	labels := make([]string, len(agg.Groups))
	series := make(map[string][]interface{}, len(agg.Stats))
	for si, s := range agg.Stats {
		vals := make([]interface{}, len(agg.Groups))
		for gi, g := range agg.Groups {
			labels[gi] = table.FormatValue(g.Key)
			if math.IsNaN(g.Values[si]) {
				vals[gi] = nil
			} else {
				vals[gi] = g.Values[si]
			}
		}
		series[aggregate.ColumnName(s)] = vals
	}

	payload := map[string]interface{}{
		"labels": labels,
		"series": series,
	}
	err := writeFileAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	})
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}

	fmt.Printf("📈 Wrote chart data for %d groups to %s\n", len(agg.Groups), path)
	return Result{Type: "chart", Path: path, RecordCount: len(agg.Groups), ExportedAt: time.Now().UTC()}, nil
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeFileAtomic writes through a temp file in the target directory and
// renames on success.
func writeFileAtomic(path string, fill func(*os.File) error) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
