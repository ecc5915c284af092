package domain

// Category is the derived classification of a news item. CategoryAll is only
// used as a selection and never returned by classification.
type Category string

// enum of categories
const (
	CategoryAll     Category = "all"
	CategorySupreme Category = "supreme"
	CategoryHigh    Category = "high"
	CategoryOther   Category = "other"
)

// ParseCategory converts a selector value to Category, empty string maps to CategoryAll
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case "", CategoryAll:
		return CategoryAll, true
	case CategorySupreme, CategoryHigh, CategoryOther:
		return Category(s), true
	}
	return "", false
}

// Title returns the section heading for the category
func (c Category) Title() string {
	switch c {
	case CategorySupreme:
		return "Supreme Court Cases"
	case CategoryHigh:
		return "High Court Cases"
	case CategoryOther:
		return "Other Articles"
	}
	return "All News"
}

// Classification is the category of an item with the optional high court sub-tag
type Classification struct {
	Category Category
	Court    string // set only for CategoryHigh when the title names a known court
}

// HighCourts lists the recognized high courts used for sub-tagging
var HighCourts = []string{
	"Allahabad High Court", "Andhra Pradesh High Court", "Bombay High Court",
	"Calcutta High Court", "Chhattisgarh High Court", "Delhi High Court",
	"Gauhati High Court", "Gujarat High Court", "Himachal Pradesh High Court",
	"Jammu & Kashmir High Court", "Jharkhand High Court",
	"Karnataka High Court", "Kerala High Court", "Madhya Pradesh High Court",
	"Madras High Court", "Manipur High Court", "Meghalaya High Court",
	"Orissa High Court", "Patna High Court", "Punjab & Haryana High Court",
	"Rajasthan High Court", "Sikkim High Court", "Telangana High Court",
	"Tripura High Court", "Uttarakhand High Court",
}
