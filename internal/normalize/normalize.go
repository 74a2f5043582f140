package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"pokeflow/internal/model"
	"pokeflow/internal/table"
)

// ListDelimiter joins list elements when expand_lists is off.
const ListDelimiter = ";"

// SchemaConflictError is returned when the same flattened path carries
// incompatible types across records and coercion is not enabled.
type SchemaConflictError struct {
	Path string
	Have string
	Got  string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("normalize: schema conflict at %q: %s vs %s", e.Path, e.Have, e.Got)
}

type kind int

const (
	kindUnknown kind = iota
	kindNumber
	kindString
	kindBool
)

func kindOf(v interface{}) kind {
	switch v.(type) {
	case float64, float32, int, int64, json.Number:
		return kindNumber
	case bool:
		return kindBool
	case string:
		return kindString
	default:
		return kindUnknown
	}
}

func (k kind) name() string {
	switch k {
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// BuildTable flattens raw API records into a table with one unified
// schema. Columns are the union of all flattened paths, ordered by first
// appearance (keys within a record in sorted order, since JSON key order
// does not survive decoding into Go maps). Missing fields become the
// absent marker. Nested objects flatten to dot-joined paths; lists are
// expanded into repeated rows or serialized per opts.ExpandLists.
func BuildTable(records []map[string]interface{}, opts model.Normalize) (*table.Table, error) {
	b := &builder{
		opts:        opts,
		kinds:       make(map[string]kind),
		objectPaths: make(map[string]bool),
		member:      make(map[string]bool),
	}

	var flatRows []map[string]interface{}
	for i, rec := range records {
		rows, err := b.flattenRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		flatRows = append(flatRows, rows...)
	}

	t := &table.Table{Columns: b.columns}
	for _, col := range b.columns {
		t.Types = append(t.Types, b.kinds[col].name())
	}
	for _, fr := range flatRows {
		row := make([]interface{}, len(b.columns))
		for j, col := range b.columns {
			v, ok := fr[col]
			if !ok {
				row[j] = table.Absent
				continue
			}
			// A column coerced to string mid-build also converts the
			// values stored before the conflict appeared.
			if b.kinds[col] == kindString && v != nil {
				if _, isStr := v.(string); !isStr {
					v = table.FormatValue(v)
				}
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}

	fmt.Printf("🧮 Normalized %d records into %d rows, %d columns\n", len(records), len(t.Rows), len(t.Columns))
	return t, nil
}

type builder struct {
	opts        model.Normalize
	columns     []string
	kinds       map[string]kind
	objectPaths map[string]bool
	member      map[string]bool
}

func (b *builder) flattenRecord(rec map[string]interface{}) ([]map[string]interface{}, error) {
	rows := []map[string]interface{}{make(map[string]interface{})}
	return b.flattenInto(rows, "", rec)
}

func (b *builder) flattenInto(rows []map[string]interface{}, prefix string, obj map[string]interface{}) ([]map[string]interface{}, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := joinPath(prefix, key)
		var err error

		switch val := obj[key].(type) {
		case map[string]interface{}:
			if b.kinds[path] != kindUnknown {
				// Path was a scalar in an earlier record.
				if !b.opts.CoerceStrings {
					return nil, &SchemaConflictError{Path: path, Have: b.kinds[path].name(), Got: "object"}
				}
				b.kinds[path] = kindString
				setAll(rows, path, jsonString(val))
				b.addColumn(path)
				continue
			}
			b.objectPaths[path] = true
			rows, err = b.flattenInto(rows, path, val)
			if err != nil {
				return nil, err
			}

		case []interface{}:
			if !b.opts.ExpandLists {
				if err := b.addLeaf(rows, path, serializeList(val)); err != nil {
					return nil, err
				}
				continue
			}
			if len(val) == 0 {
				continue
			}
			expanded := make([]map[string]interface{}, 0, len(rows)*len(val))
			for _, row := range rows {
				for _, elem := range val {
					clone := cloneRow(row)
					if m, ok := elem.(map[string]interface{}); ok {
						b.objectPaths[path] = true
						out, err := b.flattenInto([]map[string]interface{}{clone}, path, m)
						if err != nil {
							return nil, err
						}
						expanded = append(expanded, out...)
					} else {
						if err := b.addLeaf([]map[string]interface{}{clone}, path, elem); err != nil {
							return nil, err
						}
						expanded = append(expanded, clone)
					}
				}
			}
			rows = expanded

		default:
			if err := b.addLeaf(rows, path, obj[key]); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

// addLeaf stores one scalar at path in every current row, tracking the
// column's kind and raising a conflict on incompatible types.
func (b *builder) addLeaf(rows []map[string]interface{}, path string, v interface{}) error {
	if v == nil {
		// JSON null: the field is present but empty. Keep the column.
		setAll(rows, path, nil)
		b.addColumn(path)
		return nil
	}

	k := kindOf(v)
	if b.objectPaths[path] {
		if !b.opts.CoerceStrings {
			return &SchemaConflictError{Path: path, Have: "object", Got: k.name()}
		}
		b.kinds[path] = kindString
	}

	switch prev := b.kinds[path]; {
	case prev == kindUnknown:
		b.kinds[path] = k
	case prev != k:
		if !b.opts.CoerceStrings {
			return &SchemaConflictError{Path: path, Have: prev.name(), Got: k.name()}
		}
		b.kinds[path] = kindString
	}

	val := v
	if b.kinds[path] == kindString && k != kindString {
		val = table.FormatValue(v)
	}
	setAll(rows, path, val)
	b.addColumn(path)
	return nil
}

func (b *builder) addColumn(path string) {
	if !b.member[path] {
		b.member[path] = true
		b.columns = append(b.columns, path)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func setAll(rows []map[string]interface{}, path string, v interface{}) {
	for _, row := range rows {
		row[path] = v
	}
}

func cloneRow(row map[string]interface{}) map[string]interface{} {
	clone := make(map[string]interface{}, len(row))
	for k, v := range row {
		clone[k] = v
	}
	return clone
}

// serializeList renders a list as one delimited string. Object elements
// are serialized as JSON, which keeps the output deterministic.
func serializeList(items []interface{}) string {
	parts := make([]string, len(items))
	for i, item := range items {
		switch item.(type) {
		case map[string]interface{}, []interface{}:
			parts[i] = jsonString(item)
		default:
			parts[i] = table.FormatValue(item)
		}
	}
	return strings.Join(parts, ListDelimiter)
}

func jsonString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
