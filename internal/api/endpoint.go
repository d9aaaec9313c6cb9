// Package api pairs each HTTP route of the rapor server with the
// `rapor api` command that calls it, and holds the client and output
// helpers those commands share.
package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one server route plus its CLI form.
type Endpoint interface {
	// Route returns the method, the ServeMux path pattern and the handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs initialized OCR engines.
	RequiresInit() bool

	// Command returns the command calling this route, or nil.
	// serverURL is read when the command runs, after flags are parsed.
	Command(serverURL func() string) *cobra.Command
}
