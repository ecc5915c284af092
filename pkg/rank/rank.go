// Package rank derives breaking status and top stories.
package rank

import (
	"time"

	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/query"
)

// defaults
const (
	DefaultBreakingWindow   = 5 * time.Hour
	DefaultTopStories       = 3
	DefaultRotationInterval = 50 * time.Second
)

// IsBreaking is true when the item was published on the current UTC calendar day
// and no more than window ago. The window boundary is inclusive.
func IsBreaking(item domain.NewsItem, now time.Time, window time.Duration) bool {
	if item.PubDate == nil {
		return false
	}
	pub, cur := item.PubDate.UTC(), now.UTC()
	if pub.Format("2006-01-02") != cur.Format("2006-01-02") {
		return false
	}
	return cur.Sub(pub) <= window
}

// TopStories returns the n most recent items of the unfiltered recency window
func TopStories(items []domain.NewsItem, engine *query.Engine, now time.Time, n int) []domain.NewsItem {
	res := engine.Filter(items, domain.Selection{Category: domain.CategoryAll}, now)
	if n >= 0 && len(res) > n {
		res = res[:n]
	}
	return res
}
