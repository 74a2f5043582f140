package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pokeflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRunRejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"source":`},
		{"missing source", `{"aggregation":{"groupBy":"type","stats":[{"column":"power","stat":"mean"}]}}`},
		{"missing aggregation", `{"source":{"baseUrl":"http://localhost","endpoint":"pokemon"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			CreateRun(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateRunFailureRecordsOneError(t *testing.T) {
	require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "test.db")))

	// Reserve an address and close it so the fetch fails fast.
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	body := `{
		"source": {"baseUrl": "` + deadURL + `", "endpoint": "pokemon"},
		"aggregation": {"groupBy": "type", "stats": [{"column": "power", "stat": "mean"}]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	CreateRun(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RunID string `json:"runID"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	// The run executes asynchronously; wait for it to fail.
	deadline := time.Now().Add(5 * time.Second)
	for {
		run, err := store.GetRun(resp.RunID)
		require.NoError(t, err)
		if run["status"] == "failed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s still %v after 5s", resp.RunID, run["status"])
		}
		time.Sleep(20 * time.Millisecond)
	}

	errs, err := store.GetRunErrors(resp.RunID)
	require.NoError(t, err)
	assert.Len(t, errs, 1, "a failed run records its error exactly once")
}
