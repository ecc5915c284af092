package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/lawscope/pkg/classify"
	"github.com/umputun/lawscope/pkg/domain"
)

// Generator creates RSS and OPML documents from news items
type Generator struct {
	baseURL string
	descLen int
	courts  []string
}

// NewGenerator creates a new feed generator
func NewGenerator(baseURL string, descLen int, courts []string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		descLen: descLen,
		courts:  courts,
	}
}

// GenerateRSS creates an RSS 2.0 feed of already filtered items for the selection
func (g *Generator) GenerateRSS(items []domain.NewsItem, sel domain.Selection) (string, error) {
	title := "Lawscope - " + sel.Category.Title()
	if sel.Category == domain.CategoryHigh && sel.Court != "" {
		title = fmt.Sprintf("Lawscope - %s News", sel.Court)
	}

	selfLink := g.baseURL + "/rss"
	if sel.Category != "" && sel.Category != domain.CategoryAll {
		selfLink = fmt.Sprintf("%s/rss/%s", g.baseURL, sel.Category)
	}

	rssItems := make([]*RSSItem, 0, len(items))
	for _, item := range items {
		rssItems = append(rssItems, g.convertToRSSItem(item))
	}

	feed := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &RSSChannel{
			Title:         title,
			Link:          g.baseURL + "/",
			Description:   "Latest legal news from Indian courts",
			AtomLink:      &AtomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			Items:         rssItems,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(output), nil
}

func (g *Generator) convertToRSSItem(item domain.NewsItem) *RSSItem {
	tag := classify.Tag(item.Title, g.courts)
	categories := []string{tag.Category.Title()}
	if tag.Court != "" {
		categories = append(categories, tag.Court)
	}

	res := &RSSItem{
		Title:       item.Title,
		Link:        item.Link,
		GUID:        RSSGUID{Value: item.Link, IsPermaLink: true},
		Description: CleanDescription(item.Description, g.descLen),
		Categories:  categories,
	}
	if item.PubDate != nil {
		res.PubDate = item.PubDate.UTC().Format(time.RFC1123Z)
	}
	if item.Enclosure != nil && item.Enclosure.Link != "" {
		res.Enclosure = &RSSEnclosure{URL: item.Enclosure.Link, Type: item.Enclosure.Type, Length: item.Enclosure.Length}
	}
	return res
}

// GenerateOPML creates an OPML file with the configured feed sources
func (g *Generator) GenerateOPML(feeds []domain.FeedSource) (string, error) {
	type outline struct {
		XMLName xml.Name `xml:"outline"`
		Text    string   `xml:"text,attr"`
		Title   string   `xml:"title,attr"`
		Type    string   `xml:"type,attr"`
		XMLUrl  string   `xml:"xmlUrl,attr"`
	}

	type body struct {
		XMLName  xml.Name  `xml:"body"`
		Outlines []outline `xml:"outline"`
	}

	type head struct {
		XMLName     xml.Name `xml:"head"`
		Title       string   `xml:"title"`
		DateCreated string   `xml:"dateCreated"`
	}

	type opml struct {
		XMLName xml.Name `xml:"opml"`
		Version string   `xml:"version,attr"`
		Head    head     `xml:"head"`
		Body    body     `xml:"body"`
	}

	outlines := make([]outline, 0, len(feeds))
	for _, f := range feeds {
		name := f.Name
		if name == "" {
			name = f.URL
		}
		outlines = append(outlines, outline{Text: name, Title: name, Type: "rss", XMLUrl: f.URL})
	}

	doc := opml{
		Version: "2.0",
		Head: head{
			Title:       "Lawscope Feed Sources",
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
		Body: body{Outlines: outlines},
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal OPML: %w", err)
	}

	return xml.Header + string(output), nil
}
