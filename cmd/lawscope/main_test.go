package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_MissingConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: "non-existent-config.yml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: writeConfig(t, "invalid: yaml: content: [")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_ServerStartStop(t *testing.T) {
	pub := time.Now().UTC().Add(-time.Hour).Format("2006-01-02 15:04:05")
	converter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://legal.example.com/feed", r.URL.Query().Get("rss_url"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","items":[
			{"title":"Supreme Court admits plea","link":"https://legal.example.com/1","description":"<p>plea</p>","pubDate":%q},
			{"title":"Delhi High Court grants bail","link":"https://legal.example.com/2","description":"bail","pubDate":%q}
		]}`, pub, pub)
	}))
	defer converter.Close()

	port := freePort(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
server:
  listen: "127.0.0.1:%d"
database:
  dsn: "file:%s?cache=shared&mode=rwc&_txlock=immediate"
converter:
  endpoint: %s
feeds:
  - url: https://legal.example.com/feed
    name: Legal
`, port, filepath.Join(t.TempDir(), "lawscope.db"), converter.URL))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, Opts{Config: cfgPath}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status struct {
			Items int `json:"items"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return status.Items == 2
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/news?category=high")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, string(body), "Delhi High Court grants bail")

	resp, err = http.Get(base + "/rss")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, string(body), "https://legal.example.com/1")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunOffline(t *testing.T) {
	var upstreamDown atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if upstreamDown.Load() {
			panic(http.ErrAbortHandler) // drops the connection
		}
		switch r.URL.Path {
		case "/", "/index.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>shell</html>"))
		case "/style.css":
			_, _ = w.Write([]byte("body{}"))
		case "/app.js":
			_, _ = w.Write([]byte("console.log(1)"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	port := freePort(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
database:
  dsn: "file:%s?cache=shared&mode=rwc&_txlock=immediate"
offline:
  listen: "127.0.0.1:%d"
  upstream: %s
  version: test1
`, filepath.Join(t.TempDir(), "cache.db"), port, upstream.URL))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runOffline(ctx, Opts{Config: cfgPath}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/style.css")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	// shell is served from the cache when upstream is gone
	upstreamDown.Store(true)
	req, err := http.NewRequest(http.MethodGet, base+"/some/page", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>shell</html>", string(body))

	resp, err = http.Post(base+"/_offline/message", "application/json", strings.NewReader(`{"type":"SKIP_WAITING"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("offline proxy did not stop")
	}
}

func TestSetupLog(t *testing.T) {
	setupLog(true, false)
	setupLog(false, true)
	setupLog(false, false)
}
