package http

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// staticHandler serves the built web client, falling back to index.html so
// client-side routes resolve.
type staticHandler struct {
	files fs.FS
	index string
}

// newStaticHandler returns nil when dir does not hold a built client.
func newStaticHandler(dir string) *staticHandler {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	files := os.DirFS(dir)
	if _, err := fs.Stat(files, "index.html"); err != nil {
		return nil
	}
	return &staticHandler{files: files, index: "index.html"}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = h.index
	}
	if info, err := fs.Stat(h.files, name); err != nil || info.IsDir() {
		name = h.index
	}
	http.ServeFileFS(w, r, h.files, name)
}
