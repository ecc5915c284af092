package feed

import (
	"bytes"
	"encoding/json"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/lawscope/pkg/domain"
)

// DefaultDescriptionLength is the rune limit of cleaned descriptions
const DefaultDescriptionLength = 180

// RawItem is one item as returned by the feed converter. Optional fields vary between
// sources, so thumbnail and enclosure are decoded leniently.
type RawItem struct {
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	PubDate     string          `json:"pubDate"`
	Thumbnail   lenientString   `json:"thumbnail"`
	Enclosure   json.RawMessage `json:"enclosure"`
}

// lenientString accepts a JSON string and silently drops any other value
type lenientString string

// UnmarshalJSON implements json.Unmarshaler
func (s *lenientString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil //nolint:nilerr // non-string values are treated as missing
	}
	*s = lenientString(v)
	return nil
}

// Normalizer converts raw converter items to news items
type Normalizer struct {
	loc       *time.Location // zone for dates without explicit offset
	sanitizer *bluemonday.Policy
}

// NewNormalizer makes a normalizer, nil location means UTC
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc, sanitizer: bluemonday.StrictPolicy()}
}

// Normalize converts one raw item. It never fails, items that can't be stored are
// reported as skipped.
func (n *Normalizer) Normalize(raw RawItem) domain.ParseResult {
	link := strings.TrimSpace(raw.Link)
	if link == "" {
		return domain.Skipped("missing link")
	}

	item := domain.NewsItem{
		Title:       strings.TrimSpace(raw.Title),
		Link:        link,
		Description: raw.Description,
		Thumbnail:   strings.TrimSpace(string(raw.Thumbnail)),
		Enclosure:   parseEnclosure(raw.Enclosure),
	}
	if item.Description == "" {
		item.Description = raw.Content
	}
	item.PubDate = n.parseDate(raw.PubDate)
	if item.Thumbnail == "" && item.Enclosure == nil {
		item.Thumbnail = firstImage(item.Description)
	}
	return domain.Valid(item)
}

// NormalizeAll converts a batch, skipped items are dropped and counted
func (n *Normalizer) NormalizeAll(raws []RawItem) (items []domain.NewsItem, skipped int) {
	items = make([]domain.NewsItem, 0, len(raws))
	for _, raw := range raws {
		res := n.Normalize(raw)
		if res.Skipped {
			skipped++
			continue
		}
		items = append(items, res.Item)
	}
	return items, skipped
}

// CleanDescription strips markup, collapses whitespace and truncates to maxLen runes
// adding "..." when cut. Non-positive maxLen disables truncation.
func (n *Normalizer) CleanDescription(desc string, maxLen int) string {
	return cleanDescription(n.sanitizer, desc, maxLen)
}

// CleanDescription is the package level variant using a strict sanitizer
func CleanDescription(desc string, maxLen int) string {
	return cleanDescription(bluemonday.StrictPolicy(), desc, maxLen)
}

func cleanDescription(p *bluemonday.Policy, desc string, maxLen int) string {
	if desc == "" {
		return ""
	}
	text := html.UnescapeString(p.Sanitize(desc))
	text = strings.Join(strings.Fields(text), " ")
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	return string([]rune(text)[:maxLen]) + "..."
}

func (n *Normalizer) parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, n.loc)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// parseEnclosure decodes an enclosure object, anything else (null, empty array, empty object) is nil
func parseEnclosure(data json.RawMessage) *domain.Enclosure {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var raw struct {
		Link   string          `json:"link"`
		URL    string          `json:"url"`
		Type   string          `json:"type"`
		Length json.RawMessage `json:"length"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	link := raw.Link
	if link == "" {
		link = raw.URL
	}
	if link == "" {
		return nil
	}
	return &domain.Enclosure{Link: link, Type: raw.Type, Length: parseLength(raw.Length)}
}

// parseLength accepts both numeric and quoted lengths
func parseLength(data json.RawMessage) int64 {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// firstImage returns src of the first img in html fragment
func firstImage(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}
