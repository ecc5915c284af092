package query

import (
	"github.com/umputun/lawscope/pkg/classify"
	"github.com/umputun/lawscope/pkg/domain"
)

// EmptyMessage is shown when a selection yields nothing
const EmptyMessage = "No news found for your selection."

// Section is a titled group of items for display
type Section struct {
	Title    string
	Category domain.Category
	Items    []domain.NewsItem
}

// Group splits filtered items into display sections. The "all" view produces supreme,
// high and other sections in that order, skipping empty ones. A single category view
// produces one section, titled by the court when one is selected.
func Group(items []domain.NewsItem, sel domain.Selection) []Section {
	if len(items) == 0 {
		return nil
	}

	if sel.Category != "" && sel.Category != domain.CategoryAll {
		title := sel.Category.Title()
		if sel.Category == domain.CategoryHigh && sel.Court != "" {
			title = sel.Court + " News"
		}
		return []Section{{Title: title, Category: sel.Category, Items: items}}
	}

	buckets := map[domain.Category][]domain.NewsItem{}
	for _, item := range items {
		c := classify.Classify(item.Title)
		buckets[c] = append(buckets[c], item)
	}

	res := []Section{}
	for _, c := range []domain.Category{domain.CategorySupreme, domain.CategoryHigh, domain.CategoryOther} {
		if len(buckets[c]) == 0 {
			continue
		}
		res = append(res, Section{Title: c.Title(), Category: c, Items: buckets[c]})
	}
	return res
}
