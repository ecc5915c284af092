package rank

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/query"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestIsBreaking(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	tbl := []struct {
		name string
		pub  *time.Time
		want bool
	}{
		{"exactly five hours", ts("2024-06-10T07:00:00Z"), true},
		{"five hours and a second", ts("2024-06-10T06:59:59Z"), false},
		{"yesterday", ts("2024-06-09T10:00:00Z"), false},
		{"just now", ts("2024-06-10T11:59:00Z"), true},
		{"no date", nil, false},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBreaking(domain.NewsItem{PubDate: tt.pub}, now, DefaultBreakingWindow))
		})
	}

	t.Run("previous utc day within window", func(t *testing.T) {
		early := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)
		assert.False(t, IsBreaking(domain.NewsItem{PubDate: ts("2024-06-09T23:00:00Z")}, early, DefaultBreakingWindow))
	})

	t.Run("now in other zone compared in utc", func(t *testing.T) {
		ist := time.FixedZone("IST", 5*3600+1800)
		assert.True(t, IsBreaking(domain.NewsItem{PubDate: ts("2024-06-10T08:00:00Z")}, now.In(ist), DefaultBreakingWindow))
	})
}

func TestTopStories(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	items := []domain.NewsItem{
		{Title: "a", PubDate: ts("2024-06-06T10:00:00Z")},
		{Title: "b", PubDate: ts("2024-06-10T10:00:00Z")},
		{Title: "old", PubDate: ts("2024-05-01T10:00:00Z")},
		{Title: "c", PubDate: ts("2024-06-09T10:00:00Z")},
		{Title: "d", PubDate: ts("2024-06-08T10:00:00Z")},
	}
	top := TopStories(items, query.NewEngine(7), now, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Title)
	assert.Equal(t, "c", top[1].Title)
	assert.Equal(t, "d", top[2].Title)

	assert.Len(t, TopStories(items[:2], query.NewEngine(7), now, 3), 2)
	assert.Empty(t, TopStories(nil, query.NewEngine(7), now, 3))
}

func TestRotator(t *testing.T) {
	stories := []domain.NewsItem{{Title: "one"}, {Title: "two"}, {Title: "three"}}

	t.Run("manual advance wraps", func(t *testing.T) {
		r := NewRotator(time.Hour)
		r.Start(stories)
		defer r.Stop()
		assert.True(t, r.Running())

		cur, ok := r.Current()
		require.True(t, ok)
		assert.Equal(t, "one", cur.Title)

		r.Advance()
		r.Advance()
		cur, _ = r.Current()
		assert.Equal(t, "three", cur.Title)

		r.Advance()
		assert.Equal(t, 0, r.Index())
	})

	t.Run("single story has no timer", func(t *testing.T) {
		r := NewRotator(time.Millisecond)
		r.Start(stories[:1])
		assert.False(t, r.Running())
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, 0, r.Index())
	})

	t.Run("empty", func(t *testing.T) {
		r := NewRotator(time.Millisecond)
		r.Start(nil)
		_, ok := r.Current()
		assert.False(t, ok)
		r.Advance()
		assert.Equal(t, 0, r.Index())
	})

	t.Run("timer advances", func(t *testing.T) {
		r := NewRotator(5 * time.Millisecond)
		r.Start(stories)
		assert.Eventually(t, func() bool { return r.Index() != 0 }, time.Second, time.Millisecond)
		r.Stop()
		assert.False(t, r.Running())
	})

	t.Run("restart resets position", func(t *testing.T) {
		r := NewRotator(time.Hour)
		r.Start(stories)
		r.Advance()
		r.Start(stories[:2])
		defer r.Stop()
		assert.Equal(t, 0, r.Index())
	})
	t.Run("concurrent restarts", func(t *testing.T) {
		r := NewRotator(time.Millisecond)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					r.Start(stories)
					if j%5 == 0 {
						r.Stop()
					}
				}
			}()
		}
		wg.Wait()
		assert.True(t, r.Running())
		r.Stop()
		assert.False(t, r.Running())
	})
}
