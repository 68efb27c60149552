package endpoints

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/web"
)

// StaticEndpoint serves the embedded wizard page and its assets. Paths
// that name no asset get the wizard page.
type StaticEndpoint struct{}

func (e *StaticEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/*", e.handler
}

func (e *StaticEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

func (e *StaticEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	dist, err := web.DistFS()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "wizard assets unavailable")
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if info, err := fs.Stat(dist, name); name == "" || err != nil || info.IsDir() {
		name = "index.html"
	}
	http.ServeFileFS(w, r, dist, name)
}
