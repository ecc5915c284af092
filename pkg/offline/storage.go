package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"
)

// ErrCacheMiss is returned by Storage.Match when no entry is found
var ErrCacheMiss = errors.New("cache miss")

// Storage keeps named cache partitions of responses keyed by request URL
type Storage interface {
	Open(ctx context.Context, name string) error
	Partitions(ctx context.Context) ([]string, error) // in creation order
	Delete(ctx context.Context, name string) error
	Put(ctx context.Context, name string, entry Entry) error
	Match(ctx context.Context, name, key string) (Entry, error) // empty name searches all partitions
}

// Entry is a stored response
type Entry struct {
	Key      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Response makes a fresh response from the entry, each call has its own body reader
func (e Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// cloneResponse reads the body of resp into an entry and gives resp a new body
// with the same content, so the caller can still read it once.
func cloneResponse(key string, resp *http.Response) (Entry, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Entry{}, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	return Entry{
		Key:      key,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     bytes.Clone(body),
		StoredAt: time.Now().UTC(),
	}, nil
}

// MemoryStorage is an in-process Storage
type MemoryStorage struct {
	mu    sync.RWMutex
	names []string
	parts map[string]map[string]Entry
}

// NewMemoryStorage makes an empty storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{parts: map[string]map[string]Entry{}}
}

// Open creates the partition if missing
func (m *MemoryStorage) Open(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open(name)
	return nil
}

func (m *MemoryStorage) open(name string) map[string]Entry {
	if p, ok := m.parts[name]; ok {
		return p
	}
	p := map[string]Entry{}
	m.parts[name] = p
	m.names = append(m.names, name)
	return p
}

// Partitions lists partition names
func (m *MemoryStorage) Partitions(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.names), nil
}

// Delete drops the partition with all entries, missing partition is not an error
func (m *MemoryStorage) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parts, name)
	m.names = slices.DeleteFunc(m.names, func(n string) bool { return n == name })
	return nil
}

// Put stores the entry, replacing any entry with the same key
func (m *MemoryStorage) Put(_ context.Context, name string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Body = bytes.Clone(entry.Body)
	entry.Header = entry.Header.Clone()
	m.open(name)[entry.Key] = entry
	return nil
}

// Match finds the entry by key
func (m *MemoryStorage) Match(_ context.Context, name, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := m.names
	if name != "" {
		names = []string{name}
	}
	for _, n := range names {
		if e, ok := m.parts[n][key]; ok {
			return e, nil
		}
	}
	return Entry{}, ErrCacheMiss
}
