// Package classify derives news categories from article titles.
//
// Matching is a case-insensitive substring test. The bare "hc" marker matches anywhere
// in the title, including inside unrelated words, so some titles land in the high court
// bucket by accident. This is a known precision tradeoff and kept as is.
package classify

import (
	"strings"

	"github.com/umputun/lawscope/pkg/domain"
)

const (
	supremeMarker = "supreme court"
	highMarker    = "high court"
	hcMarker      = "hc"
)

// Classify returns the category of a title. Empty title is CategoryOther.
func Classify(title string) domain.Category {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, supremeMarker):
		return domain.CategorySupreme
	case strings.Contains(t, highMarker), strings.Contains(t, hcMarker):
		return domain.CategoryHigh
	default:
		return domain.CategoryOther
	}
}

// Tag classifies the title and, for high court items, finds the first known court it names
func Tag(title string, courts []string) domain.Classification {
	res := domain.Classification{Category: Classify(title)}
	if res.Category == domain.CategoryHigh {
		res.Court = MatchCourt(title, courts)
	}
	return res
}

// MatchCourt returns the first court whose exact name is contained in the title, ignoring case
func MatchCourt(title string, courts []string) string {
	t := strings.ToLower(title)
	for _, c := range courts {
		if c != "" && strings.Contains(t, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

// Matches reports whether a title belongs to the selected category and court.
// CategoryAll matches everything, court is checked only for CategoryHigh.
func Matches(title string, category domain.Category, court string) bool {
	switch category {
	case "", domain.CategoryAll:
		return true
	case domain.CategoryHigh:
		if Classify(title) != domain.CategoryHigh {
			return false
		}
		return court == "" || strings.Contains(strings.ToLower(title), strings.ToLower(court))
	default:
		return Classify(title) == category
	}
}
