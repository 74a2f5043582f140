package table

import (
	"fmt"
	"strconv"
)

// Absent marks a field that was missing from the source record.
// It is distinct from nil, zero and the empty string so that downstream
// stages can tell "not present" apart from "present but empty".
var Absent = AbsentValue{}

// AbsentValue is the type of the Absent sentinel.
type AbsentValue struct{}

func (AbsentValue) String() string { return "" }

// IsAbsent reports whether v is the absent marker.
func IsAbsent(v interface{}) bool {
	_, ok := v.(AbsentValue)
	return ok
}

// Table is an ordered collection of rows sharing one flattened column schema.
// It is built once by the normalizer and read-only afterwards.
type Table struct {
	Columns []string
	Types   []string // per-column value kind: "number", "string", "bool", "unknown"
	Rows    [][]interface{}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1 if the
// column is not part of the schema.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column in row order.
func (t *Table) Column(name string) ([]interface{}, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Numeric safely converts supported scalar types to float64.
// The second return is false for absent markers and non-numeric values.
func Numeric(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// FormatValue renders a cell value for delimited-text output.
// Absent markers render as the empty string, floats without a
// trailing zero fraction.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case AbsentValue:
		return ""
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}
