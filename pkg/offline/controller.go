// Package offline implements an offline-first caching layer in front of the web app.
//
// A Controller is one cache generation. It owns two partitions named after its version:
// a static partition with the app shell and a dynamic partition with runtime responses.
// Requests pass through one of three policies:
//   - navigation requests are network-first with fallback to the cached page, then the shell
//   - known static assets are cache-first
//   - everything else is network-first with the dynamic partition as fallback
//
// Scope runs the controller lifecycle and exposes it as an http.Handler proxy.
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"
)

// Config describes a cache generation
type Config struct {
	Prefix       string
	Version      string
	StaticAssets []string
	Shell        string // app shell document, fallback for navigation

	// WaitForMessage keeps an installed generation waiting behind the active one
	// until a SKIP_WAITING message arrives
	WaitForMessage bool
}

// StaticName is the name of the static partition
func (c Config) StaticName() string { return c.Prefix + "-" + c.Version + "-static" }

// DynamicName is the name of the dynamic partition
func (c Config) DynamicName() string { return c.Prefix + "-" + c.Version + "-dynamic" }

// State of a controller lifecycle
type State int

// enum of controller states
const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Policy names the strategy applied to a request
type Policy string

// enum of policies
const (
	PolicyNavigation Policy = "navigation"
	PolicyStatic     Policy = "static"
	PolicyDynamic    Policy = "dynamic"
)

// Controller applies caching policies for one cache generation
type Controller struct {
	cfg       Config
	storage   Storage
	transport http.RoundTripper

	mu          sync.Mutex
	state       State
	skipWaiting bool
}

// NewController makes a controller in parsed state. Nil transport means http.DefaultTransport.
func NewController(cfg Config, storage Storage, transport http.RoundTripper) *Controller {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Controller{cfg: cfg, storage: storage, transport: transport}
}

// Config returns the generation config
func (c *Controller) Config() Config { return c.cfg }

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SkipWaiting marks the controller for activation without waiting for the current one to go away
func (c *Controller) SkipWaiting() {
	c.mu.Lock()
	c.skipWaiting = true
	c.mu.Unlock()
}

// SkippingWait reports whether SkipWaiting was requested
func (c *Controller) SkippingWait() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipWaiting
}

// Install fetches all static assets from origin and stores them in the static partition.
// Install is all-or-nothing: if any asset fails nothing is stored and the controller becomes redundant.
// On success the controller asks to skip waiting unless configured to wait for a message.
func (c *Controller) Install(ctx context.Context, origin *url.URL) error {
	c.setState(StateInstalling)

	if err := c.storage.Open(ctx, c.cfg.StaticName()); err != nil {
		c.setState(StateRedundant)
		return fmt.Errorf("open static partition: %w", err)
	}

	entries := make([]Entry, len(c.cfg.StaticAssets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, asset := range c.cfg.StaticAssets {
		g.Go(func() error {
			e, err := c.fetchAsset(gctx, origin.ResolveReference(&url.URL{Path: asset}))
			if err != nil {
				return fmt.Errorf("fetch asset %s: %w", asset, err)
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.setState(StateRedundant)
		return fmt.Errorf("install %s: %w", c.cfg.StaticName(), err)
	}

	for _, e := range entries {
		if err := c.storage.Put(ctx, c.cfg.StaticName(), e); err != nil {
			c.setState(StateRedundant)
			return fmt.Errorf("store asset %s: %w", e.Key, err)
		}
	}

	c.setState(StateInstalled)
	if !c.cfg.WaitForMessage {
		c.SkipWaiting()
	}
	lgr.Printf("[INFO] offline cache %s installed, %d assets", c.cfg.StaticName(), len(entries))
	return nil
}

func (c *Controller) fetchAsset(ctx context.Context, u *url.URL) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return Entry{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return Entry{}, err
	}
	entry, err := cloneResponse(u.String(), resp)
	if err != nil {
		return Entry{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, fmt.Errorf("bad status %d", resp.StatusCode)
	}
	return entry, nil
}

// Activate deletes every partition not belonging to this generation
func (c *Controller) Activate(ctx context.Context) error {
	c.setState(StateActivating)

	names, err := c.storage.Partitions(ctx)
	if err != nil {
		c.setState(StateRedundant)
		return fmt.Errorf("list partitions: %w", err)
	}
	for _, name := range names {
		if name == c.cfg.StaticName() || name == c.cfg.DynamicName() {
			continue
		}
		if err := c.storage.Delete(ctx, name); err != nil {
			c.setState(StateRedundant)
			return fmt.Errorf("delete partition %s: %w", name, err)
		}
		lgr.Printf("[INFO] deleted stale offline cache %s", name)
	}

	c.setState(StateActivated)
	return nil
}

// Classify returns the policy for the request, first match wins
func (c *Controller) Classify(req *http.Request) Policy {
	if isNavigation(req) {
		return PolicyNavigation
	}
	u := req.URL.String()
	for _, asset := range c.cfg.StaticAssets {
		if strings.HasSuffix(u, asset) {
			return PolicyStatic
		}
	}
	return PolicyDynamic
}

// Fetch serves the request according to its policy. An error means neither the network
// nor the cache could produce a response.
func (c *Controller) Fetch(req *http.Request) (*http.Response, error) {
	switch c.Classify(req) {
	case PolicyNavigation:
		return c.networkFirst(req, true)
	case PolicyStatic:
		return c.cacheFirst(req)
	default:
		return c.networkFirst(req, false)
	}
}

// RoundTrip implements http.RoundTripper
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Fetch(req)
}

func (c *Controller) networkFirst(req *http.Request, shellFallback bool) (*http.Response, error) {
	ctx := req.Context()
	key := req.URL.String()

	resp, netErr := c.network(req, c.cfg.DynamicName())
	if netErr == nil {
		return resp, nil
	}
	lgr.Printf("[DEBUG] network failed for %s: %v", key, netErr)

	if e, err := c.storage.Match(ctx, "", key); err == nil {
		return e.Response(req), nil
	}
	if shellFallback && c.cfg.Shell != "" {
		shell := req.URL.ResolveReference(&url.URL{Path: c.cfg.Shell}).String()
		if e, err := c.storage.Match(ctx, "", shell); err == nil {
			return e.Response(req), nil
		}
	}
	return nil, fmt.Errorf("offline and not cached %s: %w", key, netErr)
}

func (c *Controller) cacheFirst(req *http.Request) (*http.Response, error) {
	e, err := c.storage.Match(req.Context(), "", req.URL.String())
	if err == nil {
		return e.Response(req), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		lgr.Printf("[WARN] cache lookup for %s: %v", req.URL, err)
	}
	return c.network(req, c.cfg.StaticName())
}

// network performs the request and stores a clone of the response in the partition.
// Any response counts as success, cache write failures are logged only.
func (c *Controller) network(req *http.Request, partition string) (*http.Response, error) {
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if req.Method != http.MethodGet {
		return resp, nil
	}

	entry, err := cloneResponse(req.URL.String(), resp)
	if err != nil {
		return nil, err
	}
	if err := c.storage.Put(req.Context(), partition, entry); err != nil {
		lgr.Printf("[WARN] can't cache %s in %s: %v", entry.Key, partition, err)
	}
	return resp, nil
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return req.Method == http.MethodGet && strings.Contains(req.Header.Get("Accept"), "text/html")
}
