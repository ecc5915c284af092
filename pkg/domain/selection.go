package domain

import "strings"

// Selection is the ephemeral view state of one client session
type Selection struct {
	Category Category
	Court    string // meaningful only when Category is CategoryHigh
	Query    string // free text or a YYYY-MM-DD date
}

// Action is a user interaction changing the selection
type Action interface {
	apply(Selection) Selection
}

// Apply returns a new selection with the action applied. Selection is never mutated in place.
func (s Selection) Apply(a Action) Selection {
	if s.Category == "" {
		s.Category = CategoryAll
	}
	if a == nil {
		return s
	}
	return a.apply(s)
}

// SelectCategory picks a top-level category and, for CategoryHigh, an optional court
type SelectCategory struct {
	Category Category
	Court    string
}

func (a SelectCategory) apply(s Selection) Selection {
	s.Category = a.Category
	if s.Category == "" {
		s.Category = CategoryAll
	}
	s.Court = ""
	if a.Category == CategoryHigh {
		s.Court = strings.TrimSpace(a.Court)
	}
	return s
}

// Search sets the search box content
type Search struct {
	Query string
}

func (a Search) apply(s Selection) Selection {
	s.Query = strings.ToLower(strings.TrimSpace(a.Query))
	return s
}
