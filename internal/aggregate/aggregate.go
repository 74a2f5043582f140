package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"pokeflow/internal/model"
	"pokeflow/internal/table"
)

// ColumnNotFoundError is returned when a requested column is absent from
// the table. No partial aggregate is produced.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("aggregate: column %q not found in table", e.Column)
}

// Group holds the computed statistics for one distinct group key.
// Values align with the request's stat order; NaN marks an undefined
// statistic (rate of change at the first group, or an empty group).
type Group struct {
	Key    interface{}
	Values []float64
}

// MarshalJSON renders undefined values as null; NaN has no JSON literal.
func (g Group) MarshalJSON() ([]byte, error) {
	vals := make([]interface{}, len(g.Values))
	for i, v := range g.Values {
		if math.IsNaN(v) {
			vals[i] = nil
		} else {
			vals[i] = v
		}
	}
	return json.Marshal(struct {
		Key    interface{}   `json:"key"`
		Values []interface{} `json:"values"`
	}{g.Key, vals})
}

// Aggregate is the result of one aggregation request: per-group
// statistics derived deterministically from a table. Recomputing from the
// same table yields the same output.
type Aggregate struct {
	GroupBy string       `json:"groupBy"`
	Stats   []model.Stat `json:"stats"`
	Groups  []Group      `json:"groups"`
}

// ColumnName returns the output column name for one stat, per the
// `<column>_<stat>` naming rule.
func ColumnName(s model.Stat) string {
	return s.Column + "_" + s.Stat
}

var supportedStats = map[string]bool{
	"count":      true,
	"sum":        true,
	"mean":       true,
	"min":        true,
	"max":        true,
	"median":     true,
	"stddev":     true,
	"percentile": true,
	"rate":       true,
}

// Compute groups the table by req.GroupBy and evaluates every requested
// statistic. Groups are ordered numerically ascending when every key is
// numeric, otherwise by first appearance. Absent-marker values are
// excluded from the statistics, never coerced to zero.
func Compute(t *table.Table, req model.Aggregation) (*Aggregate, error) {
	groupIdx := t.ColumnIndex(req.GroupBy)
	if groupIdx < 0 {
		return nil, &ColumnNotFoundError{Column: req.GroupBy}
	}
	colIdx := make([]int, len(req.Stats))
	for i, s := range req.Stats {
		if !supportedStats[strings.ToLower(s.Stat)] {
			return nil, fmt.Errorf("aggregate: unsupported statistic %q", s.Stat)
		}
		idx := t.ColumnIndex(s.Column)
		if idx < 0 {
			return nil, &ColumnNotFoundError{Column: s.Column}
		}
		colIdx[i] = idx
	}

	// Bucket rows by group key, remembering first-appearance order.
	type bucket struct {
		key  interface{}
		rows []int
	}
	var order []string
	buckets := make(map[string]*bucket)
	for i, row := range t.Rows {
		keyVal := row[groupIdx]
		if table.IsAbsent(keyVal) {
			continue
		}
		keyStr := table.FormatValue(keyVal)
		b, ok := buckets[keyStr]
		if !ok {
			b = &bucket{key: keyVal}
			buckets[keyStr] = b
			order = append(order, keyStr)
		}
		b.rows = append(b.rows, i)
	}

	// Numeric keys sort ascending; categorical keys keep first appearance.
	allNumeric := len(order) > 0
	keyNums := make(map[string]float64, len(order))
	for _, k := range order {
		n, ok := table.Numeric(buckets[k].key)
		if !ok {
			allNumeric = false
			break
		}
		keyNums[k] = n
	}
	if allNumeric {
		sort.Slice(order, func(i, j int) bool { return keyNums[order[i]] < keyNums[order[j]] })
	}

	// Per requested column: values per group, plus whole-column values for
	// percentile ranks.
	groupValues := make([][][]float64, len(req.Stats))
	columnValues := make([][]float64, len(req.Stats))
	for si, idx := range colIdx {
		groupValues[si] = make([][]float64, len(order))
		for gi, k := range order {
			for _, ri := range buckets[k].rows {
				if v, ok := table.Numeric(t.Rows[ri][idx]); ok {
					groupValues[si][gi] = append(groupValues[si][gi], v)
					columnValues[si] = append(columnValues[si], v)
				}
			}
		}
	}

	agg := &Aggregate{GroupBy: req.GroupBy, Stats: req.Stats}
	for gi, k := range order {
		g := Group{Key: buckets[k].key, Values: make([]float64, len(req.Stats))}
		for si, s := range req.Stats {
			vals := groupValues[si][gi]
			switch strings.ToLower(s.Stat) {
			case "count":
				// count covers every present value, numeric or not; only
				// absent markers are excluded.
				n := 0
				for _, ri := range buckets[k].rows {
					if !table.IsAbsent(t.Rows[ri][colIdx[si]]) {
						n++
					}
				}
				g.Values[si] = float64(n)
			case "sum":
				g.Values[si] = sum(vals)
			case "mean":
				g.Values[si] = mean(vals)
			case "min":
				g.Values[si] = minOf(vals)
			case "max":
				g.Values[si] = maxOf(vals)
			case "median":
				g.Values[si] = median(vals)
			case "stddev":
				g.Values[si] = stddev(vals)
			case "percentile":
				g.Values[si] = meanPercentile(vals, columnValues[si])
			case "rate":
				g.Values[si] = rateOfChange(gi, groupValues[si], order, keyNums, allNumeric)
			}
		}
		agg.Groups = append(agg.Groups, g)
	}

	fmt.Printf("📊 Aggregated %d rows into %d groups by %q\n", t.Len(), len(agg.Groups), req.GroupBy)
	return agg, nil
}

// rateOfChange is the difference between this group's mean and the
// previous group's mean, divided by the step between their keys. Numeric
// keys use the key difference as the step; ordinal categorical keys use a
// step of 1. Undefined (NaN) at the first group.
func rateOfChange(gi int, perGroup [][]float64, order []string, keyNums map[string]float64, numericKeys bool) float64 {
	if gi == 0 {
		return math.NaN()
	}
	cur := mean(perGroup[gi])
	prev := mean(perGroup[gi-1])
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return math.NaN()
	}
	step := 1.0
	if numericKeys {
		step = keyNums[order[gi]] - keyNums[order[gi-1]]
		if step == 0 {
			return math.NaN()
		}
	}
	return (cur - prev) / step
}

func sum(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return sum(vals) / float64(len(vals))
}

func minOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stddev is the population standard deviation.
func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	m := mean(vals)
	total := 0.0
	for _, v := range vals {
		d := v - m
		total += d * d
	}
	return math.Sqrt(total / float64(len(vals)))
}

// meanPercentile averages the percentile rank of each group value within
// the whole column: the share of column values at or below it, times 100.
func meanPercentile(vals, column []float64) float64 {
	if len(vals) == 0 || len(column) == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, v := range vals {
		atOrBelow := 0
		for _, c := range column {
			if c <= v {
				atOrBelow++
			}
		}
		total += 100 * float64(atOrBelow) / float64(len(column))
	}
	return total / float64(len(vals))
}
