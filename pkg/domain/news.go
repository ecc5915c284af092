package domain

import "time"

// NewsItem represents a normalized legal news article. Link is the identity key,
// two items with the same link are the same article.
type NewsItem struct {
	ID          int64
	Title       string
	Link        string
	Description string     // raw, may contain markup
	PubDate     *time.Time // nil when the source had no parsable date
	Thumbnail   string
	Enclosure   *Enclosure
	CreatedAt   time.Time
}

// Enclosure is a media attachment reported by the feed converter
type Enclosure struct {
	Link   string `json:"link"`
	Type   string `json:"type,omitempty"`
	Length int64  `json:"length,omitempty"`
}

// Image returns the display image reference: thumbnail first, then the enclosure link
func (n NewsItem) Image() string {
	if n.Thumbnail != "" {
		return n.Thumbnail
	}
	if n.Enclosure != nil {
		return n.Enclosure.Link
	}
	return ""
}

// FeedSource is a configured external RSS endpoint
type FeedSource struct {
	URL  string
	Name string
}

// ParseResult is the outcome of normalizing one raw feed item.
// Exactly one of Item (when Skipped is false) or Reason is meaningful.
type ParseResult struct {
	Item    NewsItem
	Skipped bool
	Reason  string
}

// Valid wraps a normalized item
func Valid(item NewsItem) ParseResult {
	return ParseResult{Item: item}
}

// Skipped reports an item which could not be normalized
func Skipped(reason string) ParseResult {
	return ParseResult{Skipped: true, Reason: reason}
}
