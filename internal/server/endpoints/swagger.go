package endpoints

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
)

// SwaggerEndpoint serves docs/swagger/swagger.json as produced by
// `go generate ./docs`.
type SwaggerEndpoint struct {
	SpecPath string // empty means DefaultSpecPath
}

func (e *SwaggerEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/swagger.json", e.serve
}

func (e *SwaggerEndpoint) RequiresInit() bool { return false }

func (e *SwaggerEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	path := e.SpecPath
	if path == "" {
		path = DefaultSpecPath()
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "OpenAPI document missing, generate it with: go generate ./docs")
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(doc)
}

func (e *SwaggerEndpoint) Command(serverURL func() string) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "swagger",
		Short: "Download the server's OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc map[string]any
			if err := api.NewClient(serverURL()).Get(cmd.Context(), "/swagger.json", &doc); err != nil {
				return err
			}
			if dest == "" {
				return api.Output(doc)
			}
			return api.OutputToFile(doc, dest)
		},
	}
	cmd.Flags().StringVarP(&dest, "file", "f", "", "write the document to this file instead of stdout")
	return cmd
}

// DefaultSpecPath looks for docs/swagger/swagger.json next to the running
// binary, then relative to the working directory.
func DefaultSpecPath() string {
	rel := filepath.Join("docs", "swagger", "swagger.json")
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return rel
}
