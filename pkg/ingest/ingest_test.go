package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/feed"
	"github.com/umputun/lawscope/pkg/ingest/mocks"
)

var sources = []domain.FeedSource{
	{URL: "https://a.example.com/feed", Name: "a"},
	{URL: "https://b.example.com/feed", Name: "b"},
	{URL: "https://c.example.com/feed", Name: "c"},
}

// memStore is an insert-only store keyed by link
type memStore struct {
	mu    sync.Mutex
	links []string
	items map[string]domain.NewsItem
}

func newMemStore() *memStore { return &memStore{items: map[string]domain.NewsItem{}} }

func (m *memStore) Exists(_ context.Context, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[link]
	return ok, nil
}

func (m *memStore) Insert(_ context.Context, item *domain.NewsItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.Link]; ok {
		return fmt.Errorf("duplicate %s", item.Link)
	}
	item.ID = int64(len(m.links) + 1)
	m.items[item.Link] = *item
	m.links = append(m.links, item.Link)
	return nil
}

func reporter() *mocks.ReporterMock {
	return &mocks.ReporterMock{
		SetStatusFunc:  func(msg string) {},
		SetFailureFunc: func(err error) {},
		ReloadFunc:     func(ctx context.Context) error { return nil },
	}
}

func converter(data map[string][]feed.RawItem, failing ...string) *mocks.ConverterMock {
	return &mocks.ConverterMock{
		FetchFunc: func(ctx context.Context, feedURL string) ([]feed.RawItem, error) {
			for _, f := range failing {
				if f == feedURL {
					return nil, errors.New("feed unreachable")
				}
			}
			return data[feedURL], nil
		},
	}
}

func TestIngestor_Run(t *testing.T) {
	data := map[string][]feed.RawItem{
		sources[0].URL: {
			{Title: "Supreme Court stays order", Link: "https://x/1", PubDate: "2024-06-05 10:00:00"},
			{Title: "no link"},
		},
		sources[1].URL: {{Title: "HC grants bail", Link: "https://x/2"}},
		sources[2].URL: {{Title: "Bar Council", Link: "https://x/3"}, {Title: "same article elsewhere", Link: "https://x/1"}},
	}

	store := newMemStore()
	rep := reporter()
	conv := converter(data)
	ing := NewIngestor(Params{Sources: sources, Converter: conv, Store: store, Reporter: rep})

	res, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Fetched: 5, Skipped: 1, Inserted: 3, Duplicates: 1}, res)

	assert.Equal(t, []string{"https://x/1", "https://x/2", "https://x/3"}, store.links, "inserted in source order")
	assert.Equal(t, "Supreme Court stays order", store.items["https://x/1"].Title)
	assert.Len(t, conv.FetchCalls(), 3)

	require.Len(t, rep.SetStatusCalls(), 1)
	assert.Equal(t, StatusFetching, rep.SetStatusCalls()[0].Msg)
	assert.Len(t, rep.ReloadCalls(), 1)
	assert.Empty(t, rep.SetFailureCalls())
}

func TestIngestor_DedupIdempotence(t *testing.T) {
	data := map[string][]feed.RawItem{
		sources[0].URL: {{Title: "a", Link: "https://x/a"}, {Title: "b", Link: "https://x/b"}},
		sources[1].URL: {{Title: "a dup", Link: "https://x/a"}},
	}
	store := newMemStore()
	ing := NewIngestor(Params{Sources: sources[:2], Converter: converter(data), Store: store, Reporter: reporter()})

	first, err := ing.Run(context.Background())
	require.NoError(t, err)
	snapshot := append([]string(nil), store.links...)

	second, err := ing.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, snapshot, store.links)
}

func TestIngestor_FeedFailureIsAbsorbed(t *testing.T) {
	data := map[string][]feed.RawItem{
		sources[1].URL: {{Title: "b", Link: "https://x/b"}},
	}
	rep := reporter()
	store := newMemStore()
	ing := NewIngestor(Params{
		Sources: sources, Converter: converter(data, sources[0].URL, sources[2].URL),
		Store: store, Reporter: rep, MaxWorkers: 1,
	})

	res, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.FailedFeeds)
	assert.Equal(t, 1, res.Inserted)
	assert.Len(t, rep.SetStatusCalls(), 1, "feed failures don't set status")
	assert.Empty(t, rep.SetFailureCalls())
	assert.Len(t, rep.ReloadCalls(), 1)
}

func TestIngestor_InsertErrorContinues(t *testing.T) {
	data := map[string][]feed.RawItem{
		sources[0].URL: {{Title: "a", Link: "https://x/a"}, {Title: "b", Link: "https://x/b"}, {Title: "c", Link: "https://x/c"}},
	}
	store := &mocks.StoreMock{
		ExistsFunc: func(ctx context.Context, link string) (bool, error) {
			if link == "https://x/c" {
				return false, errors.New("read failed")
			}
			return false, nil
		},
		InsertFunc: func(ctx context.Context, item *domain.NewsItem) error {
			if item.Link == "https://x/a" {
				return errors.New("disk full")
			}
			return nil
		},
	}
	rep := reporter()
	ing := NewIngestor(Params{Sources: sources[:1], Converter: converter(data), Store: store, Reporter: rep})

	res, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Failed)

	require.Len(t, store.InsertCalls(), 2)
	assert.Equal(t, "https://x/b", store.InsertCalls()[1].Item.Link)

	require.Len(t, rep.SetStatusCalls(), 2)
	assert.Equal(t, "Insert error: disk full", rep.SetStatusCalls()[1].Msg)
	assert.Len(t, rep.ReloadCalls(), 1)
}

func TestIngestor_ReloadError(t *testing.T) {
	rep := reporter()
	rep.ReloadFunc = func(ctx context.Context) error { return errors.New("db gone") }
	ing := NewIngestor(Params{Sources: sources[:1], Converter: converter(nil), Store: newMemStore(), Reporter: rep})

	_, err := ing.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

func TestIngestor_Panic(t *testing.T) {
	data := map[string][]feed.RawItem{sources[0].URL: {{Title: "a", Link: "https://x/a"}}}
	store := &mocks.StoreMock{
		ExistsFunc: func(ctx context.Context, link string) (bool, error) { panic("store exploded") },
	}
	rep := reporter()
	ing := NewIngestor(Params{Sources: sources[:1], Converter: converter(data), Store: store, Reporter: rep})

	_, err := ing.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "store exploded", err.Error())
	require.Len(t, rep.SetFailureCalls(), 1)
	assert.Equal(t, "store exploded", rep.SetFailureCalls()[0].Err.Error())
	assert.Empty(t, rep.ReloadCalls())
}

func TestIngestor_ConverterPanicIsFeedFailure(t *testing.T) {
	conv := &mocks.ConverterMock{
		FetchFunc: func(ctx context.Context, feedURL string) ([]feed.RawItem, error) {
			if feedURL == sources[0].URL {
				panic("bad converter")
			}
			return []feed.RawItem{{Title: "b", Link: "https://x/b"}}, nil
		},
	}
	rep := reporter()
	ing := NewIngestor(Params{Sources: sources[:2], Converter: conv, Store: newMemStore(), Reporter: rep})

	res, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedFeeds)
	assert.Equal(t, 1, res.Inserted)
	assert.Empty(t, rep.SetFailureCalls())
}
