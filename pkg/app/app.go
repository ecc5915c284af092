// Package app keeps the in-memory working set of news and builds view models from it.
// The working set is replaced as a whole on every reload and never patched in place.
package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/lawscope/pkg/classify"
	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/feed"
	"github.com/umputun/lawscope/pkg/query"
	"github.com/umputun/lawscope/pkg/rank"
)

// status messages
const (
	StatusLoading = "Loading archive..."
	StatusEmpty   = "No news found in database."
)

//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store

// DefaultArchiveLimit is the number of newest items loaded into the working set
const DefaultArchiveLimit = 300

// Store lists persisted news, newest first
type Store interface {
	List(ctx context.Context, limit int) ([]domain.NewsItem, error)
}

// Params for New
type Params struct {
	Store             Store
	Courts            []string
	ArchiveLimit      int
	RecencyDays       int
	TopStories        int
	BreakingWindow    time.Duration
	RotationInterval  time.Duration
	DescriptionLength int
}

// App holds the working set, the status line and the top story rotation
type App struct {
	store    Store
	courts   []string
	limit    int
	engine   *query.Engine
	topN     int
	breaking time.Duration
	descLen  int
	rotator  *rank.Rotator

	mu       sync.RWMutex
	items    []domain.NewsItem
	status   string
	failure  string
	loadedAt time.Time
}

// Card is one news item prepared for display
type Card struct {
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Description string          `json:"description"`
	Image       string          `json:"image,omitempty"`
	PubDate     *time.Time      `json:"pubdate,omitempty"`
	Breaking    bool            `json:"breaking"`
	Category    domain.Category `json:"category"`
	Court       string          `json:"court,omitempty"`
}

// Section is a titled group of cards
type Section struct {
	Title    string          `json:"title"`
	Category domain.Category `json:"category"`
	Items    []Card          `json:"items"`
}

// View is the view model of one selection
type View struct {
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Top        []Card    `json:"top"`
	CurrentTop int       `json:"current_top"`
	Sections   []Section `json:"sections"`
	Message    string    `json:"message,omitempty"`
}

// Info describes the state of the working set
type Info struct {
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Items    int       `json:"items"`
	LoadedAt time.Time `json:"loaded_at"`
}

// New makes an app with an empty working set
func New(p Params) *App {
	if p.ArchiveLimit <= 0 {
		p.ArchiveLimit = DefaultArchiveLimit
	}
	if p.TopStories <= 0 {
		p.TopStories = rank.DefaultTopStories
	}
	if p.BreakingWindow <= 0 {
		p.BreakingWindow = rank.DefaultBreakingWindow
	}
	if p.DescriptionLength <= 0 {
		p.DescriptionLength = feed.DefaultDescriptionLength
	}
	if len(p.Courts) == 0 {
		p.Courts = domain.HighCourts
	}
	return &App{
		store:    p.Store,
		courts:   p.Courts,
		limit:    p.ArchiveLimit,
		engine:   query.NewEngine(p.RecencyDays),
		topN:     p.TopStories,
		breaking: p.BreakingWindow,
		descLen:  p.DescriptionLength,
		rotator:  rank.NewRotator(p.RotationInterval),
	}
}

// Reload replaces the working set with the newest stored items. On store error the
// working set becomes empty and the error is shown as status.
func (a *App) Reload(ctx context.Context) error {
	a.SetStatus(StatusLoading)

	items, err := a.store.List(ctx, a.limit)

	a.mu.Lock()
	switch {
	case err != nil:
		a.items = nil
		a.status = "Store error: " + err.Error()
	case len(items) == 0:
		a.items = nil
		a.status = StatusEmpty
	default:
		a.items = items
		a.status = ""
		a.failure = ""
	}
	a.loadedAt = time.Now()
	current := a.items
	a.mu.Unlock()

	a.rotator.Start(rank.TopStories(current, a.engine, time.Now(), a.topN))

	if err != nil {
		return fmt.Errorf("load news: %w", err)
	}
	lgr.Printf("[DEBUG] working set reloaded, %d items", len(current))
	return nil
}

// SetStatus sets the status line
func (a *App) SetStatus(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = msg
}

// SetFailure reports a failed ingestion run in the status line and the content area
func (a *App) SetFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = "Failed news fetch: " + err.Error()
	a.failure = "Failed: " + err.Error()
}

// Status returns state of the working set
func (a *App) Status() Info {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Info{Status: a.status, Error: a.failure, Items: len(a.items), LoadedAt: a.loadedAt}
}

// Courts returns recognized high court names
func (a *App) Courts() []string {
	return slices.Clone(a.courts)
}

// Items returns the filtered, sorted items of the selection
func (a *App) Items(sel domain.Selection, now time.Time) []domain.NewsItem {
	a.mu.RLock()
	items := a.items
	a.mu.RUnlock()
	return a.engine.Filter(items, sel, now)
}

// View builds the view model of the selection
func (a *App) View(sel domain.Selection, now time.Time) View {
	a.mu.RLock()
	items, status, failure := a.items, a.status, a.failure
	a.mu.RUnlock()

	res := View{Status: status, Error: failure, Top: []Card{}, Sections: []Section{}}

	for _, item := range rank.TopStories(items, a.engine, now, a.topN) {
		res.Top = append(res.Top, a.card(item, now))
	}
	if idx := a.rotator.Index(); idx < len(res.Top) {
		res.CurrentTop = idx
	}

	sections := query.Group(a.engine.Filter(items, sel, now), sel)
	if len(sections) == 0 {
		res.Message = query.EmptyMessage
		return res
	}
	for _, s := range sections {
		sec := Section{Title: s.Title, Category: s.Category, Items: make([]Card, 0, len(s.Items))}
		for _, item := range s.Items {
			sec.Items = append(sec.Items, a.card(item, now))
		}
		res.Sections = append(res.Sections, sec)
	}
	return res
}

// AdvanceTop moves the top story rotation forward
func (a *App) AdvanceTop() {
	a.rotator.Advance()
}

// Close stops the top story rotation
func (a *App) Close() {
	a.rotator.Stop()
}

func (a *App) card(item domain.NewsItem, now time.Time) Card {
	tag := classify.Tag(item.Title, a.courts)
	return Card{
		Title:       item.Title,
		Link:        item.Link,
		Description: feed.CleanDescription(item.Description, a.descLen),
		Image:       item.Image(),
		PubDate:     item.PubDate,
		Breaking:    rank.IsBreaking(item, now, a.breaking),
		Category:    tag.Category,
		Court:       tag.Court,
	}
}
