package endpoints

import (
	"io/fs"
	"net/http"
	"path"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/web"
)

// StaticEndpoint serves the embedded upload page. It matches every GET
// path no other route claims, so it is registered last.
type StaticEndpoint struct{}

var _ api.Endpoint = (*StaticEndpoint)(nil)

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{path...}", e.serve
}

func (e *StaticEndpoint) RequiresInit() bool { return false }

func (e *StaticEndpoint) Command(func() string) *cobra.Command { return nil }

func (e *StaticEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	assets, err := web.Assets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upload page not embedded")
		return
	}

	name := r.PathValue("path")
	if name == "" {
		name = web.IndexFile
	}
	name = path.Clean(name)
	if !fs.ValidPath(name) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := fs.Stat(assets, name); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFileFS(w, r, assets, name)
}
