package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry keeps endpoints in registration order. A catch-all route must
// be registered last so that it does not shadow the others in help output.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a registry holding eps.
func NewRegistry(eps ...Endpoint) *Registry {
	r := &Registry{}
	r.Register(eps...)
	return r
}

// Register appends endpoints.
func (r *Registry) Register(eps ...Endpoint) {
	r.endpoints = append(r.endpoints, eps...)
}

// Mount adds every route to mux. Handlers of endpoints that require
// initialized engines are wrapped with guard.
func (r *Registry) Mount(mux *http.ServeMux, guard func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, h := ep.Route()
		if ep.RequiresInit() && guard != nil {
			h = guard(h)
		}
		mux.HandleFunc(method+" "+path, h)
	}
}

// Patterns returns the "METHOD /path" pattern of every endpoint.
func (r *Registry) Patterns() []string {
	out := make([]string, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		method, path, _ := ep.Route()
		out = append(out, method+" "+path)
	}
	return out
}

// CommandTree returns an "api" command with one subcommand per endpoint
// that has a CLI form.
func (r *Registry) CommandTree(serverURL func() string) *cobra.Command {
	root := &cobra.Command{
		Use:   "api",
		Short: "Call a running rapor server",
		Long: `Call a running rapor server (rapor serve) over HTTP.

Point --server at another host or port if needed.

Examples:
  rapor api ready                   # Are the OCR engines up?
  rapor api scan rapor_budi.pdf     # Recognize a document on the server
  rapor api scan rapor_budi.jpg --download ocr_results.txt
  rapor api batch                   # Process the server's input folder
  rapor api metrics --engine paddle # Call statistics for one engine`,
	}
	for _, ep := range r.endpoints {
		if cmd := ep.Command(serverURL); cmd != nil {
			root.AddCommand(cmd)
		}
	}
	return root
}
