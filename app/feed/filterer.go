package feed

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/patch-comb/app/changes"
)

const reasonNotPatchNote = "Not a patch note: no patch keyword in title or description"

type Filterer struct {
	dict *changes.Dictionary
}

// NewFilterer uses dict for patch keyword detection; nil means the default
// dictionary.
func NewFilterer(dict *changes.Dictionary) *Filterer {
	if dict == nil {
		dict = changes.DefaultDictionary()
	}
	return &Filterer{dict: dict}
}

// Run marks items that should not be ingested. Items are returned in the
// same order with IsFiltered and FilterReason set.
func (f *Filterer) Run(items []Item, feedConfig *Config) []Item {
	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		item.IsFiltered, item.FilterReason = f.check(item, feedConfig.Filters)
		filtered = append(filtered, item)
	}

	return filtered
}

func (f *Filterer) check(item Item, filters []ConfigFilter) (bool, string) {
	if !f.dict.IsPatchNote(item.Title + " " + item.Description) {
		return true, reasonNotPatchNote
	}
	return f.applyFilters(item, filters)
}

func (f *Filterer) applyFilters(item Item, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}
