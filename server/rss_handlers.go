package server

import (
	"net/http"

	"github.com/go-pkgz/lgr"
)

// rssHandler serves the filtered view as RSS.
// Supports both /rss/{category} and /rss?category=... patterns
func (s *Server) rssHandler(w http.ResponseWriter, r *http.Request) {
	sel, err := selection(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rss, err := s.generator.GenerateRSS(s.news.Items(sel, s.now()), sel)
	if err != nil {
		lgr.Printf("[ERROR] failed to generate RSS feed: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(rss)); err != nil {
		lgr.Printf("[ERROR] failed to write RSS response: %v", err)
	}
}

// opmlHandler exports configured feed sources
func (s *Server) opmlHandler(w http.ResponseWriter, _ *http.Request) {
	opml, err := s.generator.GenerateOPML(s.sources)
	if err != nil {
		lgr.Printf("[ERROR] failed to generate OPML: %v", err)
		http.Error(w, "Failed to generate OPML", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=lawscope.opml")
	if _, err := w.Write([]byte(opml)); err != nil {
		lgr.Printf("[ERROR] failed to write OPML response: %v", err)
	}
}
