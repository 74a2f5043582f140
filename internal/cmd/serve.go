package cmd

import (
	"pokeflow/internal/api"
	"pokeflow/internal/store"
	"pokeflow/pkg/router"

	"github.com/spf13/cobra"

	_ "pokeflow/docs" // swagger spec
)

var serveFlags struct {
	addr   string
	dbPath string
}

// @title pokeflow API
// @version 1.0
// @description API ingestion and aggregation pipeline
// @BasePath /api/v1
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.InitDB(serveFlags.dbPath); err != nil {
			return err
		}

		r := router.New()
		api.RegisterRoutes(r)
		return r.Start(serveFlags.addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", "pokeflow.db", "run-tracking database path")
	rootCmd.AddCommand(serveCmd)
}
