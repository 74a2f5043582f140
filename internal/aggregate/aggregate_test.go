package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"pokeflow/internal/model"
	"pokeflow/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func powerTable() *table.Table {
	return &table.Table{
		Columns: []string{"name", "type", "power"},
		Rows: [][]interface{}{
			{"a", "fire", 10.0},
			{"b", "fire", 20.0},
			{"c", "water", 30.0},
		},
	}
}

func TestComputeGroupedMean(t *testing.T) {
	agg, err := Compute(powerTable(), model.Aggregation{
		GroupBy: "type",
		Stats:   []model.Stat{{Column: "power", Stat: "mean"}},
	})
	require.NoError(t, err)

	require.Len(t, agg.Groups, 2)
	assert.Equal(t, "fire", agg.Groups[0].Key)
	assert.Equal(t, 15.0, agg.Groups[0].Values[0])
	assert.Equal(t, "water", agg.Groups[1].Key)
	assert.Equal(t, 30.0, agg.Groups[1].Values[0])
}

func TestComputeIsIdempotent(t *testing.T) {
	req := model.Aggregation{
		GroupBy: "type",
		Stats: []model.Stat{
			{Column: "power", Stat: "count"},
			{Column: "power", Stat: "mean"},
			{Column: "power", Stat: "max"},
		},
	}

	first, err := Compute(powerTable(), req)
	require.NoError(t, err)
	second, err := Compute(powerTable(), req)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestComputeRateOfChange(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"generation", "power"},
		Rows: [][]interface{}{
			{1.0, 10.0},
			{2.0, 15.0},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "generation",
		Stats:   []model.Stat{{Column: "power", Stat: "rate"}},
	})
	require.NoError(t, err)

	require.Len(t, agg.Groups, 2)
	assert.True(t, math.IsNaN(agg.Groups[0].Values[0]), "rate is undefined at the first group")
	assert.Equal(t, 5.0, agg.Groups[1].Values[0])
}

func TestComputeRateUsesKeyDifferenceAsStep(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"year", "power"},
		Rows: [][]interface{}{
			{2020.0, 10.0},
			{2022.0, 20.0},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "year",
		Stats:   []model.Stat{{Column: "power", Stat: "rate"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, agg.Groups[1].Values[0])
}

func TestComputeNumericKeysSortAscending(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"generation", "power"},
		Rows: [][]interface{}{
			{3.0, 1.0},
			{1.0, 2.0},
			{2.0, 3.0},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "generation",
		Stats:   []model.Stat{{Column: "power", Stat: "count"}},
	})
	require.NoError(t, err)

	keys := []interface{}{agg.Groups[0].Key, agg.Groups[1].Key, agg.Groups[2].Key}
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, keys)
}

func TestComputeCategoricalKeysKeepFirstAppearance(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"type", "power"},
		Rows: [][]interface{}{
			{"water", 1.0},
			{"fire", 2.0},
			{"water", 3.0},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "type",
		Stats:   []model.Stat{{Column: "power", Stat: "count"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "water", agg.Groups[0].Key)
	assert.Equal(t, "fire", agg.Groups[1].Key)
}

func TestComputeColumnNotFound(t *testing.T) {
	_, err := Compute(powerTable(), model.Aggregation{
		GroupBy: "type",
		Stats:   []model.Stat{{Column: "speed", Stat: "mean"}},
	})

	var notFound *ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "speed", notFound.Column)

	_, err = Compute(powerTable(), model.Aggregation{
		GroupBy: "region",
		Stats:   []model.Stat{{Column: "power", Stat: "mean"}},
	})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "region", notFound.Column)
}

func TestComputeUnsupportedStat(t *testing.T) {
	_, err := Compute(powerTable(), model.Aggregation{
		GroupBy: "type",
		Stats:   []model.Stat{{Column: "power", Stat: "mode"}},
	})
	require.Error(t, err)
}

func TestComputeCountsNonNumericValues(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"type", "name"},
		Rows: [][]interface{}{
			{"fire", "charmander"},
			{"fire", "vulpix"},
			{"fire", table.Absent},
			{"water", "squirtle"},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "type",
		Stats:   []model.Stat{{Column: "name", Stat: "count"}},
	})
	require.NoError(t, err)

	// Strings are present values and count; only absent markers don't.
	require.Len(t, agg.Groups, 2)
	assert.Equal(t, 2.0, agg.Groups[0].Values[0])
	assert.Equal(t, 1.0, agg.Groups[1].Values[0])
}

func TestComputeExcludesAbsentValues(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"type", "power"},
		Rows: [][]interface{}{
			{"fire", 10.0},
			{"fire", table.Absent},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "type",
		Stats: []model.Stat{
			{Column: "power", Stat: "mean"},
			{Column: "power", Stat: "count"},
		},
	})
	require.NoError(t, err)

	// The absent value is excluded, not coerced to zero.
	assert.Equal(t, 10.0, agg.Groups[0].Values[0])
	assert.Equal(t, 1.0, agg.Groups[0].Values[1])
}

func TestComputeMedianStddevPercentile(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"type", "power"},
		Rows: [][]interface{}{
			{"fire", 10.0},
			{"fire", 20.0},
			{"fire", 30.0},
			{"water", 30.0},
		},
	}

	agg, err := Compute(tbl, model.Aggregation{
		GroupBy: "type",
		Stats: []model.Stat{
			{Column: "power", Stat: "median"},
			{Column: "power", Stat: "stddev"},
			{Column: "power", Stat: "percentile"},
		},
	})
	require.NoError(t, err)

	fire := agg.Groups[0]
	assert.Equal(t, 20.0, fire.Values[0])
	assert.InDelta(t, 8.1649658, fire.Values[1], 1e-6)

	// Column values are 10,20,30,30; percentile ranks are 25, 50, 100.
	assert.InDelta(t, (25.0+50.0+100.0)/3, fire.Values[2], 1e-9)

	water := agg.Groups[1]
	assert.Equal(t, 100.0, water.Values[2])
}

func TestGroupMarshalsNaNAsNull(t *testing.T) {
	g := Group{Key: "fire", Values: []float64{math.NaN(), 1.5}}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"fire","values":[null,1.5]}`, string(data))
}
