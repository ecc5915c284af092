package rank

import (
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/lawscope/pkg/domain"
)

// Rotator cycles through top stories at a fixed interval, wrapping after the last one.
// With a single story no timer is started.
type Rotator struct {
	interval time.Duration

	lifecycle sync.Mutex // serializes Start and Stop

	mu      sync.Mutex
	stories []domain.NewsItem
	idx     int
	stop    chan struct{}
	done    chan struct{}
}

// NewRotator makes a stopped rotator
func NewRotator(interval time.Duration) *Rotator {
	if interval <= 0 {
		interval = DefaultRotationInterval
	}
	return &Rotator{interval: interval}
}

// Start replaces the story set, resets to the first story and restarts the timer
func (r *Rotator) Start(stories []domain.NewsItem) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.halt()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stories = append([]domain.NewsItem(nil), stories...)
	r.idx = 0
	if len(r.stories) < 2 {
		return
	}

	r.stop, r.done = make(chan struct{}), make(chan struct{})
	go r.loop(r.stop, r.done)
	lgr.Printf("[DEBUG] rotating %d top stories every %v", len(r.stories), r.interval)
}

// Stop halts the timer, the current story stays selected
func (r *Rotator) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.halt()
}

// halt closes the running loop and waits for it to exit, caller holds lifecycle
func (r *Rotator) halt() {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the rotation timer is active
func (r *Rotator) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Advance moves to the next story
func (r *Rotator) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stories) == 0 {
		return
	}
	r.idx = (r.idx + 1) % len(r.stories)
}

// Current returns the displayed story, false if there are none
func (r *Rotator) Current() (domain.NewsItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stories) == 0 {
		return domain.NewsItem{}, false
	}
	return r.stories[r.idx], true
}

// Index returns the position of the displayed story
func (r *Rotator) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx
}

func (r *Rotator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Advance()
		}
	}
}
