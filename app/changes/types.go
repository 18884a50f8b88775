package changes

import (
	"encoding/json"
)

type Category string

const (
	CategoryHunters   Category = "hunters"
	CategoryEquipment Category = "equipment"
	CategorySystems   Category = "systems"
	CategoryMaps      Category = "maps"
	CategoryModes     Category = "modes"
)

// Categories lists every category in tie-break priority order.
var Categories = []Category{
	CategoryHunters,
	CategoryEquipment,
	CategorySystems,
	CategoryMaps,
	CategoryModes,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type ChangeType string

const (
	TypeBuff   ChangeType = "buff"
	TypeNerf   ChangeType = "nerf"
	TypeFix    ChangeType = "fix"
	TypeNew    ChangeType = "new"
	TypeRework ChangeType = "rework"
	TypeChange ChangeType = "change"
)

type Source string

const (
	SourceHeuristic  Source = "heuristic"
	SourceEnrichment Source = "enrichment"
)

type ChangeEntry struct {
	Description string     `json:"description"`
	Type        ChangeType `json:"type"`
	Confidence  float64    `json:"confidence,omitempty"` // zero when the entry was not scored
	Source      Source     `json:"source,omitempty"`
}

// CategorizedChanges maps each category to its ordered, deduplicated entries.
type CategorizedChanges map[Category][]ChangeEntry

// NewCategorizedChanges returns a value with every category present and empty.
func NewCategorizedChanges() CategorizedChanges {
	c := make(CategorizedChanges, len(Categories))
	for _, category := range Categories {
		c[category] = []ChangeEntry{}
	}
	return c
}

func (c CategorizedChanges) Count() int {
	total := 0
	for _, entries := range c {
		total += len(entries)
	}
	return total
}

// Clone returns a deep copy with every category present.
func (c CategorizedChanges) Clone() CategorizedChanges {
	out := NewCategorizedChanges()
	for category, entries := range c {
		out[category] = append([]ChangeEntry{}, entries...)
	}
	return out
}

func (c CategorizedChanges) MarshalJSON() ([]byte, error) {
	out := make(map[Category][]ChangeEntry, len(Categories))
	for _, category := range Categories {
		out[category] = []ChangeEntry{}
	}
	for category, entries := range c {
		if entries != nil {
			out[category] = entries
		}
	}
	return json.Marshal(out)
}
