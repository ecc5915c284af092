package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/ingest"
)

// selection builds the view selection from category path value or query params
func selection(r *http.Request) (domain.Selection, error) {
	q := r.URL.Query()

	raw := r.PathValue("category")
	if raw == "" {
		raw = q.Get("category")
	}
	category, ok := domain.ParseCategory(raw)
	if !ok {
		return domain.Selection{}, fmt.Errorf("unknown category %q", raw)
	}

	return domain.Selection{}.
		Apply(domain.SelectCategory{Category: category, Court: q.Get("court")}).
		Apply(domain.Search{Query: q.Get("q")}), nil
}

// newsHandler returns the view model of the requested selection
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	sel, err := selection(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}
	renderJSON(w, r, http.StatusOK, s.news.View(sel, s.now()))
}

// courtsHandler returns recognized high court names
func (s *Server) courtsHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.news.Courts())
}

// statusHandler returns server status along with the working set status line
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	info := s.news.Status()
	status := map[string]any{
		"status":    "ok",
		"version":   s.version,
		"time":      s.now().UTC(),
		"items":     info.Items,
		"message":   info.Status,
		"loaded_at": info.LoadedAt,
	}
	if info.Error != "" {
		status["error"] = info.Error
	}
	renderJSON(w, r, http.StatusOK, status)
}

// refreshHandler starts an ingestion run without waiting for it
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Trigger(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrNotRunning) {
			code = http.StatusServiceUnavailable
		}
		lgr.Printf("[WARN] refresh rejected: %v", err)
		renderError(w, r, err, code)
		return
	}
	renderJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}
