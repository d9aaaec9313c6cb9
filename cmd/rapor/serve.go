package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/server"
)

var serveFlags struct {
	host        string
	port        string
	swaggerSpec string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload page and the recognition API",
	Long: `Run the rapor HTTP server until Ctrl+C or SIGTERM.

OCR engines are initialized before the listener opens and released after
it drains.

Routes:
  GET  /              upload page
  POST /api/scan      recognize one uploaded PDF or image
  POST /api/batch     process the input folder
  GET  /api/metrics   OCR call statistics
  GET  /health        liveness
  GET  /ready         200 once the engines are initialized
  GET  /swagger.json  OpenAPI document

Examples:
  rapor serve
  rapor serve --port 3000
  rapor serve --host 0.0.0.0 --home /srv/rapor`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, h, err := loadConfig()
		if err != nil {
			return err
		}
		services, err := buildServices(cfg, h, logger)
		if err != nil {
			return err
		}
		srv, err := server.New(server.Config{
			Host:            serveFlags.host,
			Port:            serveFlags.port,
			Services:        services,
			SwaggerSpecPath: serveFlags.swaggerSpec,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		return srv.Start(cmd.Context())
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.host, "host", "127.0.0.1", "address to bind")
	f.StringVar(&serveFlags.port, "port", "8080", "port to listen on")
	f.StringVar(&serveFlags.swaggerSpec, "swagger-spec", "", "path to swagger.json (default: docs/swagger/swagger.json)")
	rootCmd.AddCommand(serveCmd)
}
