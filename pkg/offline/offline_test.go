package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNet serves pages by path and counts requests, can be switched offline
type fakeNet struct {
	mu      sync.Mutex
	offline bool
	pages   map[string]string
	calls   map[string]int
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		pages: map[string]string{
			"/":           "<html>root</html>",
			"/index.html": "<html>shell</html>",
			"/style.css":  "body{}",
			"/app.js":     "console.log(1)",
		},
		calls: map[string]int{},
	}
}

func (f *fakeNet) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL.Path]++
	if f.offline {
		return nil, errors.New("network is down")
	}
	body, ok := f.pages[req.URL.Path]
	status := http.StatusOK
	if !ok {
		status, body = http.StatusNotFound, "not found"
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/plain"}, "X-Path": []string{req.URL.Path}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (f *fakeNet) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[path] = body
}

func (f *fakeNet) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeNet) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeNet) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

var origin = &url.URL{Scheme: "http", Host: "upstream.local"}

func testConfig(version string) Config {
	return Config{
		Prefix:       "lni",
		Version:      version,
		StaticAssets: []string{"/", "/index.html", "/style.css", "/app.js"},
		Shell:        "/index.html",
	}
}

func installed(t *testing.T, net *fakeNet, storage Storage) *Controller {
	t.Helper()
	c := NewController(testConfig("v2"), storage, net)
	require.NoError(t, c.Install(context.Background(), origin))
	require.NoError(t, c.Activate(context.Background()))
	return c
}

func get(path, accept string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://upstream.local"+path, http.NoBody)
	req.RequestURI = ""
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestConfig_Names(t *testing.T) {
	cfg := testConfig("v2")
	assert.Equal(t, "lni-v2-static", cfg.StaticName())
	assert.Equal(t, "lni-v2-dynamic", cfg.DynamicName())
}

func TestController_Install(t *testing.T) {
	t.Run("all assets stored", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := NewController(testConfig("v2"), storage, net)
		require.NoError(t, c.Install(context.Background(), origin))

		assert.Equal(t, StateInstalled, c.State())
		assert.True(t, c.SkippingWait(), "install forces immediate activation")

		names, err := storage.Partitions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"lni-v2-static"}, names)

		for _, asset := range []string{"/", "/index.html", "/style.css", "/app.js"} {
			e, err := storage.Match(context.Background(), "lni-v2-static", "http://upstream.local"+asset)
			require.NoError(t, err, asset)
			assert.Equal(t, http.StatusOK, e.Status)
		}
	})

	t.Run("one missing asset stores nothing", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		delete(net.pages, "/app.js")
		c := NewController(testConfig("v2"), storage, net)

		err := c.Install(context.Background(), origin)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/app.js")
		assert.Equal(t, StateRedundant, c.State())
		assert.False(t, c.SkippingWait())
	})

	t.Run("wait for message", func(t *testing.T) {
		cfg := testConfig("v2")
		cfg.WaitForMessage = true
		storage := NewMemoryStorage()
		c := NewController(cfg, storage, newFakeNet())
		require.NoError(t, c.Install(context.Background(), origin))
		assert.Equal(t, StateInstalled, c.State())
		assert.False(t, c.SkippingWait())

		_, err := storage.Match(context.Background(), "", "http://upstream.local/style.css")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("offline install fails", func(t *testing.T) {
		net := newFakeNet()
		net.setOffline(true)
		c := NewController(testConfig("v2"), NewMemoryStorage(), net)
		require.Error(t, c.Install(context.Background(), origin))
	})
}

func TestController_Activate(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	for _, name := range []string{"lni-v1-static", "lni-v1-dynamic", "lni-v2-dynamic", "unrelated"} {
		require.NoError(t, storage.Open(ctx, name))
	}

	c := installed(t, newFakeNet(), storage)
	assert.Equal(t, StateActivated, c.State())

	names, err := storage.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lni-v2-dynamic", "lni-v2-static"}, names)
}

func TestController_Classify(t *testing.T) {
	c := NewController(testConfig("v2"), NewMemoryStorage(), newFakeNet())

	navigate := get("/news", "")
	navigate.Header.Set("Sec-Fetch-Mode", "navigate")
	post := httptest.NewRequest(http.MethodPost, "http://upstream.local/api/v1/refresh", http.NoBody)
	post.Header.Set("Accept", "text/html")

	tbl := []struct {
		name string
		req  *http.Request
		want Policy
	}{
		{"navigate mode", navigate, PolicyNavigation},
		{"html accept", get("/style.css", "text/html,application/xhtml+xml"), PolicyNavigation},
		{"post with html accept", post, PolicyDynamic},
		{"static css", get("/style.css", "text/css"), PolicyStatic},
		{"static script", get("/app.js", "*/*"), PolicyStatic},
		{"root", get("/", "*/*"), PolicyStatic},
		{"any trailing slash matches root asset", get("/api/v1/", "application/json"), PolicyStatic},
		{"api", get("/api/v1/news?category=high", "application/json"), PolicyDynamic},
		{"image", get("/img/logo.png", "image/*"), PolicyDynamic},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.req))
		})
	}
}

func TestController_Navigation(t *testing.T) {
	ctx := context.Background()

	t.Run("offline returns cached root document", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.setOffline(true)

		resp, err := c.Fetch(get("/", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, "<html>root</html>", readBody(t, resp))
	})

	t.Run("online caches page in dynamic partition", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.set("/archive", "<html>archive</html>")

		resp, err := c.Fetch(get("/archive", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, "<html>archive</html>", readBody(t, resp))

		e, err := storage.Match(ctx, "lni-v2-dynamic", "http://upstream.local/archive")
		require.NoError(t, err)
		assert.Equal(t, "<html>archive</html>", string(e.Body))

		net.setOffline(true)
		resp, err = c.Fetch(get("/archive", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, "<html>archive</html>", readBody(t, resp))
	})

	t.Run("offline uncached page falls back to shell", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.setOffline(true)

		resp, err := c.Fetch(get("/never/seen?x=1", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, "<html>shell</html>", readBody(t, resp))
	})

	t.Run("offline with empty cache fails", func(t *testing.T) {
		net := newFakeNet()
		net.setOffline(true)
		c := NewController(testConfig("v2"), NewMemoryStorage(), net)
		_, err := c.Fetch(get("/", "text/html"))
		require.Error(t, err)
	})

	t.Run("error status is still a network success", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		resp, err := c.Fetch(get("/missing", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not found", readBody(t, resp))
	})
}

func TestController_Static(t *testing.T) {
	ctx := context.Background()

	t.Run("cached asset never hits network", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.reset()
		net.set("/style.css", "body{color:red}")

		for range 3 {
			resp, err := c.Fetch(get("/style.css", "text/css"))
			require.NoError(t, err)
			assert.Equal(t, "body{}", readBody(t, resp))
		}
		assert.Equal(t, 0, net.count("/style.css"))
	})

	t.Run("miss fetches and stores in static partition", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := NewController(testConfig("v2"), storage, net)

		resp, err := c.Fetch(get("/app.js", "*/*"))
		require.NoError(t, err)
		assert.Equal(t, "console.log(1)", readBody(t, resp))
		assert.Equal(t, 1, net.count("/app.js"))

		e, err := storage.Match(ctx, "lni-v2-static", "http://upstream.local/app.js")
		require.NoError(t, err)
		assert.Equal(t, "console.log(1)", string(e.Body))

		_, err = c.Fetch(get("/app.js", "*/*"))
		require.NoError(t, err)
		assert.Equal(t, 1, net.count("/app.js"))
	})

	t.Run("offline miss fails", func(t *testing.T) {
		net := newFakeNet()
		net.setOffline(true)
		c := NewController(testConfig("v2"), NewMemoryStorage(), net)
		_, err := c.Fetch(get("/style.css", "text/css"))
		require.Error(t, err)
	})
}

func TestController_Dynamic(t *testing.T) {
	ctx := context.Background()
	const key = "http://upstream.local/api/v1/news"

	t.Run("network available always refreshes cache", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)

		for i := range 3 {
			body := fmt.Sprintf(`{"n":%d}`, i)
			net.set("/api/v1/news", body)
			resp, err := c.Fetch(get("/api/v1/news", "application/json"))
			require.NoError(t, err)
			assert.Equal(t, body, readBody(t, resp))

			e, err := storage.Match(ctx, "lni-v2-dynamic", key)
			require.NoError(t, err)
			assert.Equal(t, body, string(e.Body))
		}
		assert.Equal(t, 3, net.count("/api/v1/news"))
	})

	t.Run("offline serves last cached response", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.set("/api/v1/news", `{"n":1}`)
		_, err := c.Fetch(get("/api/v1/news", "application/json"))
		require.NoError(t, err)

		net.setOffline(true)
		resp, err := c.Fetch(get("/api/v1/news", "application/json"))
		require.NoError(t, err)
		assert.Equal(t, `{"n":1}`, readBody(t, resp))
		assert.Equal(t, "/api/v1/news", resp.Header.Get("X-Path"))
	})

	t.Run("offline without cache has no fallback", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.setOffline(true)
		_, err := c.Fetch(get("/api/v1/courts", "application/json"))
		require.Error(t, err)
	})

	t.Run("non-get responses are not cached", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		net.set("/api/v1/refresh", "accepted")
		req := httptest.NewRequest(http.MethodPost, "http://upstream.local/api/v1/refresh", http.NoBody)
		resp, err := c.Fetch(req)
		require.NoError(t, err)
		assert.Equal(t, "accepted", readBody(t, resp))

		_, err = storage.Match(ctx, "", "http://upstream.local/api/v1/refresh")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("caller gets a fully readable body", func(t *testing.T) {
		net, storage := newFakeNet(), NewMemoryStorage()
		c := installed(t, net, storage)
		payload := strings.Repeat("x", 64*1024)
		net.set("/big", payload)

		resp, err := c.RoundTrip(get("/big", "*/*"))
		require.NoError(t, err)
		assert.Equal(t, int64(len(payload)), resp.ContentLength)
		assert.Equal(t, payload, readBody(t, resp))

		e, err := storage.Match(ctx, "lni-v2-dynamic", "http://upstream.local/big")
		require.NoError(t, err)
		assert.Len(t, e.Body, len(payload))
	})
}

func TestEntry_Response(t *testing.T) {
	e := Entry{Key: "k", Status: http.StatusOK, Header: http.Header{"A": []string{"b"}}, Body: []byte("body")}
	r1, r2 := e.Response(nil), e.Response(nil)
	assert.Equal(t, "body", readBody(t, r1))
	assert.Equal(t, "body", readBody(t, r2))
	assert.Equal(t, "200 OK", r1.Status)
	r1.Header.Set("A", "changed")
	assert.Equal(t, "b", e.Header.Get("A"))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Open(ctx, "one"))
	require.NoError(t, s.Open(ctx, "one"))
	require.NoError(t, s.Put(ctx, "two", Entry{Key: "k", Body: []byte("from two")}))
	require.NoError(t, s.Put(ctx, "one", Entry{Key: "k", Body: []byte("from one")}))

	names, err := s.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, names)

	e, err := s.Match(ctx, "", "k")
	require.NoError(t, err)
	assert.Equal(t, "from one", string(e.Body), "first created partition wins")

	e, err = s.Match(ctx, "two", "k")
	require.NoError(t, err)
	assert.Equal(t, "from two", string(e.Body))

	require.NoError(t, s.Delete(ctx, "one"))
	require.NoError(t, s.Delete(ctx, "missing"))
	e, err = s.Match(ctx, "", "k")
	require.NoError(t, err)
	assert.Equal(t, "from two", string(e.Body))

	_, err = s.Match(ctx, "one", "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestScope_Register(t *testing.T) {
	ctx := context.Background()
	net, storage := newFakeNet(), NewMemoryStorage()
	s := NewScope(storage, net, origin)
	assert.Nil(t, s.Active())

	v1, err := s.Register(ctx, testConfig("v1"))
	require.NoError(t, err)
	assert.Equal(t, v1, s.Active())
	assert.Equal(t, StateActivated, v1.State())

	// populate v1 dynamic partition
	_, err = v1.Fetch(get("/api/v1/news", "application/json"))
	require.NoError(t, err)

	v2, err := s.Register(ctx, testConfig("v2"))
	require.NoError(t, err)
	assert.Equal(t, v2, s.Active())
	assert.Nil(t, s.Waiting())
	assert.Equal(t, StateRedundant, v1.State())

	names, err := storage.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lni-v2-static"}, names)

	net.setOffline(true)
	_, err = s.Register(ctx, testConfig("v3"))
	require.Error(t, err)
	assert.Equal(t, v2, s.Active(), "failed install keeps the active generation")
}

func TestScope_SkipWaitingMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	net, storage := newFakeNet(), NewMemoryStorage()
	s := NewScope(storage, net, origin)

	waitCfg := func(version string) Config {
		cfg := testConfig(version)
		cfg.WaitForMessage = true
		return cfg
	}

	v1, err := s.Register(ctx, waitCfg("v1"))
	require.NoError(t, err)
	assert.Equal(t, v1, s.Active(), "first generation activates without waiting")

	v2, err := s.Register(ctx, waitCfg("v2"))
	require.NoError(t, err)
	assert.Equal(t, v1, s.Active())
	assert.Equal(t, v2, s.Waiting())
	assert.Equal(t, StateInstalled, v2.State())
	assert.Equal(t, StateActivated, v1.State())

	names, err := storage.Partitions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lni-v1-static", "lni-v2-static"}, names, "old partitions kept while waiting")

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Post(Message{Type: "PING"}))
	require.NoError(t, s.Post(Message{Type: MessageSkipWaiting}))
	assert.Eventually(t, func() bool { return s.Active() == v2 }, time.Second, time.Millisecond)
	assert.Nil(t, s.Waiting())
	assert.Equal(t, StateRedundant, v1.State())
	assert.True(t, v2.SkippingWait())

	names, err = storage.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lni-v2-static"}, names)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScope_Restore(t *testing.T) {
	ctx := context.Background()

	// storage holding an installed v1 generation and a partition of another prefix
	seeded := func(t *testing.T) (*fakeNet, *MemoryStorage) {
		net, storage := newFakeNet(), NewMemoryStorage()
		_, err := NewScope(storage, net, origin).Register(ctx, testConfig("v1"))
		require.NoError(t, err)
		require.NoError(t, storage.Open(ctx, "other-v9-static"))
		return net, storage
	}

	t.Run("nothing stored", func(t *testing.T) {
		s := NewScope(NewMemoryStorage(), newFakeNet(), origin)
		_, err := s.Restore(ctx, testConfig("v2"))
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Nil(t, s.Active())
	})

	t.Run("newest generation restored", func(t *testing.T) {
		net, storage := seeded(t)
		s := NewScope(storage, net, origin)
		c, err := s.Restore(ctx, testConfig("v2"))
		require.NoError(t, err)
		assert.Equal(t, c, s.Active())
		assert.Equal(t, "v1", c.Config().Version)
		assert.Equal(t, StateActivated, c.State())

		net.setOffline(true)
		resp, err := c.Fetch(get("/style.css", ""))
		require.NoError(t, err)
		assert.Equal(t, "body{}", readBody(t, resp))
	})

	t.Run("new version waits behind restored one", func(t *testing.T) {
		net, storage := seeded(t)
		s := NewScope(storage, net, origin)
		v1, err := s.Restore(ctx, testConfig("v2"))
		require.NoError(t, err)

		cfg := testConfig("v2")
		cfg.WaitForMessage = true
		v2, err := s.Register(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, v1, s.Active())
		assert.Equal(t, v2, s.Waiting())
	})

	t.Run("new version without waiting replaces restored one", func(t *testing.T) {
		net, storage := seeded(t)
		s := NewScope(storage, net, origin)
		v1, err := s.Restore(ctx, testConfig("v2"))
		require.NoError(t, err)

		v2, err := s.Register(ctx, testConfig("v2"))
		require.NoError(t, err)
		assert.Equal(t, v2, s.Active())
		assert.Equal(t, StateRedundant, v1.State())
	})

	t.Run("same version reinstall activates", func(t *testing.T) {
		net, storage := seeded(t)
		s := NewScope(storage, net, origin)
		v1, err := s.Restore(ctx, testConfig("v1"))
		require.NoError(t, err)

		cfg := testConfig("v1")
		cfg.WaitForMessage = true
		again, err := s.Register(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, again, s.Active())
		assert.Nil(t, s.Waiting())
		assert.Equal(t, StateRedundant, v1.State())
	})
}

func TestScope_PostQueueFull(t *testing.T) {
	s := NewScope(NewMemoryStorage(), newFakeNet(), origin)
	for range cap(s.messages) {
		require.NoError(t, s.Post(Message{Type: MessageSkipWaiting}))
	}
	assert.ErrorIs(t, s.Post(Message{Type: MessageSkipWaiting}), ErrQueueFull)
}

func TestScope_Handler(t *testing.T) {
	net, storage := newFakeNet(), NewMemoryStorage()
	s := NewScope(storage, net, origin)
	h := s.Handler()

	t.Run("passthrough before activation", func(t *testing.T) {
		net.set("/api/v1/status", `{"status":"ok"}`)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
		_, err := storage.Match(context.Background(), "", "http://upstream.local/api/v1/status")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	_, err := s.Register(context.Background(), testConfig("v2"))
	require.NoError(t, err)

	t.Run("proxied through controller", func(t *testing.T) {
		net.set("/api/v1/news", `{"n":1}`)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/news?category=high", http.NoBody)
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"n":1}`, rec.Body.String())
		assert.Equal(t, "/api/v1/news", rec.Header().Get("X-Path"))

		_, err := storage.Match(context.Background(), "lni-v2-dynamic", "http://upstream.local/api/v1/news?category=high")
		require.NoError(t, err)
	})

	t.Run("offline uncached is a bare gateway timeout", func(t *testing.T) {
		net.setOffline(true)
		defer net.setOffline(false)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courts", http.NoBody))
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("offline navigation gets cached shell", func(t *testing.T) {
		net.setOffline(true)
		defer net.setOffline(false)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whatever", http.NoBody)
		req.Header.Set("Accept", "text/html")
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<html>shell</html>", rec.Body.String())
	})

	t.Run("message endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, MessagePath, strings.NewReader(`{"type":"SKIP_WAITING"}`)))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		select {
		case msg := <-s.messages:
			assert.Equal(t, MessageSkipWaiting, msg.Type)
		default:
			t.Fatal("message not queued")
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, MessagePath, strings.NewReader(`{bad`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
