package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pokeflow/internal/aggregate"
	"pokeflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"name":"a","type":"fire","power":10},
			{"name":"b","type":"fire","power":20},
			{"name":"c","type":"water","power":30}
		],"next":null}`)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.csv")
	spec := model.RunSpec{
		Source:      model.Source{BaseURL: srv.URL, Endpoint: "pokemon"},
		Aggregation: model.Aggregation{GroupBy: "type", Stats: []model.Stat{{Column: "power", Stat: "mean"}}},
		Export:      model.Export{File: out},
	}

	err := Run(context.Background(), "test-run", spec)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "type,power_mean", lines[0])
	assert.Equal(t, "fire,15", lines[1])
	assert.Equal(t, "water,30", lines[2])
}

func TestRunIDRangeEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/pokemon/")
		fmt.Fprintf(w, `{"id":%s,"type":"grass","power":%s0}`, id, id)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.json")
	spec := model.RunSpec{
		Source:      model.Source{BaseURL: srv.URL, Endpoint: "pokemon", FromID: 1, ToID: 3},
		Fetch:       model.Fetch{Prefetch: 2},
		Aggregation: model.Aggregation{GroupBy: "type", Stats: []model.Stat{{Column: "power", Stat: "sum"}}},
		Export:      model.Export{File: out},
	}

	err := Run(context.Background(), "test-run", spec)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"export_info"`)
	assert.Contains(t, string(data), "60", "sum of powers 10+20+30")
}

func TestRunFailedFetchLeavesNoOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.csv")
	spec := model.RunSpec{
		Source:      model.Source{BaseURL: srv.URL, Endpoint: "missing"},
		Aggregation: model.Aggregation{GroupBy: "type", Stats: []model.Stat{{Column: "power", Stat: "mean"}}},
		Export:      model.Export{File: out},
	}

	err := Run(context.Background(), "test-run", spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch stage")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed run must not write output")
}

func TestRunUnknownColumnFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"name":"a","type":"fire"}],"next":null}`)
	}))
	defer srv.Close()

	spec := model.RunSpec{
		Source:      model.Source{BaseURL: srv.URL, Endpoint: "pokemon"},
		Aggregation: model.Aggregation{GroupBy: "type", Stats: []model.Stat{{Column: "nope", Stat: "mean"}}},
	}

	err := Run(context.Background(), "test-run", spec)
	var colErr *aggregate.ColumnNotFoundError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "nope", colErr.Column)
}

func TestRunChartExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"type":"fire","power":10},
			{"type":"water","power":30}
		],"next":null}`)
	}))
	defer srv.Close()

	chart := filepath.Join(t.TempDir(), "chart.json")
	spec := model.RunSpec{
		Source:      model.Source{BaseURL: srv.URL, Endpoint: "pokemon"},
		Aggregation: model.Aggregation{GroupBy: "type", Stats: []model.Stat{{Column: "power", Stat: "max"}}},
		Export:      model.Export{Chart: chart},
	}

	err := Run(context.Background(), "test-run", spec)
	require.NoError(t, err)

	data, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"labels"`)
	assert.Contains(t, string(data), `"power_max"`)
}
