// Package web embeds the upload page served at /.
package web

import (
	"embed"
	"io/fs"
)

// IndexFile is served for the root path.
const IndexFile = "index.html"

//go:embed all:dist
var dist embed.FS

// Assets returns the embedded files rooted at dist/.
func Assets() (fs.FS, error) {
	return fs.Sub(dist, "dist")
}
