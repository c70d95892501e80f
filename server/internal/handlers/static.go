package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// SPAHandler serves the built frontend. Real files are served as-is;
// anything else falls back to index.html so client-side routes survive a
// page reload.
type SPAHandler struct {
	staticDir string
}

// NewSPAHandler creates the static file handler rooted at staticDir
func NewSPAHandler(staticDir string) *SPAHandler {
	return &SPAHandler{staticDir: staticDir}
}

func (s *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqPath := filepath.Clean(r.URL.Path)
	if strings.Contains(reqPath, "..") {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(s.staticDir, reqPath)
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		http.ServeFile(w, r, full)
		return
	}

	http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
}
