package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"
)

// MessageSkipWaiting asks the waiting controller to activate immediately
const MessageSkipWaiting = "SKIP_WAITING"

// MessagePath is the endpoint accepting messages for the scope
const MessagePath = "/_offline/message"

// Message is sent to the scope over its message channel
type Message struct {
	Type string `json:"type"`
}

// ErrQueueFull is returned by Post when the message channel is full
var ErrQueueFull = errors.New("message queue full")

// Scope manages controller generations for one origin. At most one controller is active
// and controls every request, a newly installed one may wait until told to skip waiting.
type Scope struct {
	storage   Storage
	transport http.RoundTripper
	upstream  *url.URL

	mu       sync.RWMutex
	active   *Controller
	waiting  *Controller
	messages chan Message
}

// NewScope makes a scope proxying to upstream. Nil transport means http.DefaultTransport.
func NewScope(storage Storage, transport http.RoundTripper, upstream *url.URL) *Scope {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Scope{
		storage:   storage,
		transport: transport,
		upstream:  upstream,
		messages:  make(chan Message, 16),
	}
}

// Register installs a new generation. If the install asks to skip waiting, nothing is active yet
// or the active generation has the same version, the generation is activated and claims all requests.
// Otherwise it waits for a SKIP_WAITING message.
func (s *Scope) Register(ctx context.Context, cfg Config) (*Controller, error) {
	c := NewController(cfg, s.storage, s.transport)
	if err := c.Install(ctx, s.upstream); err != nil {
		return nil, fmt.Errorf("register %s: %w", cfg.Version, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.cfg.Version != cfg.Version && !c.SkippingWait() {
		s.waiting = c
		lgr.Printf("[INFO] offline cache %s is waiting", cfg.Version)
		return c, nil
	}
	if err := s.promote(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Restore makes the newest stored generation with the cfg prefix active without fetching anything.
// The restored controller takes its version from the partition name and the rest from cfg.
// Returns ErrCacheMiss if no generation is stored.
func (s *Scope) Restore(ctx context.Context, cfg Config) (*Controller, error) {
	names, err := s.storage.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	version := ""
	for _, name := range names {
		tail, ok := strings.CutPrefix(name, cfg.Prefix+"-")
		if !ok {
			continue
		}
		if v, ok := strings.CutSuffix(tail, "-static"); ok && v != "" {
			version = v // partitions come in creation order, the last one wins
		}
	}
	if version == "" {
		return nil, ErrCacheMiss
	}

	cfg.Version = version
	c := NewController(cfg, s.storage, s.transport)
	c.setState(StateActivated)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = c
	lgr.Printf("[INFO] offline cache %s restored", version)
	return c, nil
}

// promote activates c replacing the current controller, must be called under lock
func (s *Scope) promote(ctx context.Context, c *Controller) error {
	if err := c.Activate(ctx); err != nil {
		return fmt.Errorf("activate %s: %w", c.cfg.Version, err)
	}
	if s.active != nil && s.active != c {
		s.active.setState(StateRedundant)
	}
	s.active = c
	if s.waiting == c {
		s.waiting = nil
	}
	lgr.Printf("[INFO] offline cache %s active", c.cfg.Version)
	return nil
}

// Active returns the controlling controller, nil before the first activation
func (s *Scope) Active() *Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Waiting returns the installed controller waiting for activation
func (s *Scope) Waiting() *Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waiting
}

// Post queues a message without blocking
func (s *Scope) Post(msg Message) error {
	select {
	case s.messages <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes messages until ctx is canceled
func (s *Scope) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.messages:
			s.handleMessage(ctx, msg)
		}
	}
}

func (s *Scope) handleMessage(ctx context.Context, msg Message) {
	if msg.Type != MessageSkipWaiting {
		lgr.Printf("[DEBUG] ignored offline message %q", msg.Type)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == nil {
		lgr.Printf("[DEBUG] skip waiting requested, nothing is waiting")
		return
	}
	s.waiting.SkipWaiting()
	if err := s.promote(ctx, s.waiting); err != nil {
		lgr.Printf("[WARN] skip waiting failed: %v", err)
	}
}

// Handler returns the http handler of the scope: the message endpoint and the caching proxy
func (s *Scope) Handler() http.Handler {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()))
	router.HandleFunc("POST "+MessagePath, s.messageHandler)
	router.HandleFunc("/", s.proxyHandler)
	return router
}

func (s *Scope) messageHandler(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		renderJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message"})
		return
	}
	if err := s.Post(msg); err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	renderJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// proxyHandler sends the request upstream through the active controller.
// Without an active controller requests go straight to the network.
func (s *Scope) proxyHandler(w http.ResponseWriter, r *http.Request) {
	out := r.Clone(r.Context())
	out.RequestURI = ""
	out.URL.Scheme = s.upstream.Scheme
	out.URL.Host = s.upstream.Host
	out.Host = s.upstream.Host

	var rt http.RoundTripper = s.transport
	if c := s.Active(); c != nil {
		rt = c
	}

	resp, err := rt.RoundTrip(out)
	if err != nil {
		lgr.Printf("[WARN] offline fetch %s failed: %v", out.URL, err)
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		lgr.Printf("[WARN] copy response for %s: %v", out.URL, err)
	}
}

func renderJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
	}
}
