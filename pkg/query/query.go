// Package query filters, searches, sorts and groups the news working set.
package query

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/umputun/lawscope/pkg/classify"
	"github.com/umputun/lawscope/pkg/domain"
)

// DefaultRecencyDays is the rolling calendar window, today included
const DefaultRecencyDays = 7

var dateQuery = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Engine applies the recency window, category and search filters
type Engine struct {
	recencyDays int
}

// NewEngine makes an engine for the given window size, non-positive days fall back to the default
func NewEngine(recencyDays int) *Engine {
	if recencyDays <= 0 {
		recencyDays = DefaultRecencyDays
	}
	return &Engine{recencyDays: recencyDays}
}

// Window is a half-open [Start, End) time range
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls into the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Window returns the recency window for now: from midnight (days-1) days ago up to the
// next midnight, both in now's location.
func (e *Engine) Window(now time.Time) Window {
	y, m, d := now.Date()
	return Window{
		Start: time.Date(y, m, d-(e.recencyDays-1), 0, 0, 0, 0, now.Location()),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()),
	}
}

// Filter returns a new slice with items inside the recency window matching the selection,
// newest first. Each step narrows the previous result, input is never modified.
func (e *Engine) Filter(items []domain.NewsItem, sel domain.Selection, now time.Time) []domain.NewsItem {
	win := e.Window(now)
	res := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		if item.PubDate == nil || !win.Contains(*item.PubDate) {
			continue
		}
		if !classify.Matches(item.Title, sel.Category, sel.Court) {
			continue
		}
		if !MatchQuery(item, sel.Query) {
			continue
		}
		res = append(res, item)
	}
	SortByPubDate(res)
	return res
}

// MatchQuery checks an item against the search box content. A YYYY-MM-DD query matches
// the UTC calendar date of the publication time, anything else is a case-insensitive
// substring of title or description. Empty query matches everything.
func MatchQuery(item domain.NewsItem, q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return true
	}
	if dateQuery.MatchString(q) {
		if item.PubDate == nil {
			return false
		}
		return item.PubDate.UTC().Format("2006-01-02") == q
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(item.Title), q) ||
		strings.Contains(strings.ToLower(item.Description), q)
}

// SortByPubDate sorts in place, newest first. Items without a date sort after every dated
// item and keep their relative order; this is how unparsable dates end up.
func SortByPubDate(items []domain.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PubDate, items[j].PubDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
