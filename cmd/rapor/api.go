package main

import (
	"os"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/server/endpoints"
)

var serverURL string

func init() {
	defaultURL := os.Getenv("RAPOR_SERVER")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	// serverURL is only final after flag parsing, hence the closure.
	cmd := api.NewRegistry(endpoints.All(endpoints.Config{})...).
		CommandTree(func() string { return serverURL })
	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "rapor server URL (env RAPOR_SERVER)")
	rootCmd.AddCommand(cmd)
}
