package server

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/go-pkgz/lgr"
)

//go:embed static/*
var staticFS embed.FS

// started is the modification time reported for embedded assets
var started = time.Now()

// assetHandler serves one embedded app shell file by name. /index.html must answer 200,
// http.FileServer would redirect it to /.
func (s *Server) assetHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(staticFS, path.Join("static", name))
		if err != nil {
			lgr.Printf("[ERROR] failed to read asset %s: %v", name, err)
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		http.ServeContent(w, r, name, started, bytes.NewReader(data))
	}
}
