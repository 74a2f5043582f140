package api

import (
	"pokeflow/internal/api/handler"
	"pokeflow/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"
)

// RegisterRoutes wires the run API and the swagger UI onto the router.
func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/runs", handler.CreateRun)
	r.GET("/api/v1/runs", handler.ListRuns)
	r.GET("/api/v1/runs/*/errors", handler.GetRunErrors)
	r.GET("/api/v1/runs/*/results", handler.GetRunResults)
	r.GET("/api/v1/runs/*", handler.GetRun)

	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
