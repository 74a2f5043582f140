package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pokeflow/internal/model"
	"pokeflow/internal/pipeline"
	"pokeflow/internal/store"

	"github.com/google/uuid"
)

const runTimeout = 10 * time.Minute

// CreateRun creates a new analysis run
// @Summary Create a new run
// @Description Submit an analysis spec; the run executes asynchronously
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration"
// @Success 200 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	if spec.Source.BaseURL == "" || spec.Source.Endpoint == "" {
		http.Error(w, "source.baseUrl and source.endpoint are required", http.StatusBadRequest)
		return
	}
	if spec.Aggregation.GroupBy == "" || len(spec.Aggregation.Stats) == 0 {
		http.Error(w, "aggregation.groupBy and at least one stat are required", http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	go func() {
		defer cancel()
		// pipeline.Run records failures in the store itself.
		pipeline.Run(ctx, runID, spec)
	}()

	resp := map[string]interface{}{
		"message":   "Run accepted",
		"runID":     runID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListRuns retrieves all runs
// @Summary List all runs
// @Description Get every recorded run with its current status
// @Tags runs
// @Produce json
// @Success 200 {array} model.RunSummary "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun retrieves one run
// @Summary Get run
// @Description Retrieve the spec and status of a specific run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunErrors retrieves the errors of one run
// @Summary Get run errors
// @Description Retrieve every error recorded for a specific run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "/errors")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to fetch run errors", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(errs)
}

// GetRunResults retrieves the aggregated results of one run
// @Summary Get run results
// @Description Retrieve the aggregates produced by a specific run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} object "Aggregated results"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/results [get]
func GetRunResults(w http.ResponseWriter, r *http.Request) {
	runID := runIDFromPath(r.URL.Path, "/results")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	results, err := store.GetRunResults(runID)
	if err != nil {
		http.Error(w, "Failed to fetch run results", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func runIDFromPath(path, suffix string) string {
	const prefix = "/api/v1/runs/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	id := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		id = strings.TrimSuffix(id, suffix)
	}
	return strings.Trim(id, "/")
}
