package feed

import (
	"strings"
	"testing"
)

func TestFilterer_PatchNoteDetection(t *testing.T) {
	items := []Item{
		{Title: "Patch 1.4 Notes", Description: "Ghost cooldown reduced"},
		{Title: "Community spotlight", Description: "Fan art of the week"},
		{Title: "Weekly news", Description: "A small balance pass on hunters"},
	}

	result := NewFilterer(nil).Run(items, &Config{})

	if len(result) != 3 {
		t.Fatalf("Expected all items returned, got %d", len(result))
	}
	if result[0].IsFiltered || result[2].IsFiltered {
		t.Errorf("Expected patch notes kept, got %+v", result)
	}
	if !result[1].IsFiltered || result[1].FilterReason != reasonNotPatchNote {
		t.Errorf("Expected the spotlight filtered as not a patch note, got %+v", result[1])
	}
	if items[1].IsFiltered {
		t.Error("Expected input items not to be modified")
	}
}

func TestFilterer_ConfigFilters(t *testing.T) {
	tests := []struct {
		name     string
		item     Item
		filter   ConfigFilter
		filtered bool
		reason   string
	}{
		{
			name:     "exclude matches",
			item:     Item{Title: "Patch 1.4 for PTR only"},
			filter:   ConfigFilter{Field: "title", Excludes: []string{"ptr"}},
			filtered: true,
			reason:   "contains 'ptr'",
		},
		{
			name:     "include matches",
			item:     Item{Title: "Hotfix 1.4.1", Categories: []string{"patchnotes"}},
			filter:   ConfigFilter{Field: "categories", Includes: []string{"PatchNotes"}},
			filtered: false,
		},
		{
			name:     "include misses",
			item:     Item{Title: "Hotfix 1.4.1", Link: "https://example.com/blog/1"},
			filter:   ConfigFilter{Field: "link", Includes: []string{"steampowered.com"}},
			filtered: true,
			reason:   "does not contain any of",
		},
		{
			name:     "content field",
			item:     Item{Title: "Update", Content: "Contains a survey link"},
			filter:   ConfigFilter{Field: "content", Excludes: []string{"survey"}},
			filtered: true,
			reason:   "Excluded by content filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Filters: []ConfigFilter{tt.filter}}
			result := NewFilterer(nil).Run([]Item{tt.item}, config)

			if result[0].IsFiltered != tt.filtered {
				t.Errorf("Expected filtered %v, got %v (%s)", tt.filtered, result[0].IsFiltered, result[0].FilterReason)
			}
			if !strings.Contains(result[0].FilterReason, tt.reason) {
				t.Errorf("Expected reason containing %q, got %q", tt.reason, result[0].FilterReason)
			}
		})
	}
}
