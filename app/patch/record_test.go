package patch

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/patch-comb/app/changes"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNewRecord(t *testing.T) {
	c := changes.NewCategorizedChanges()
	c[changes.CategoryHunters] = []changes.ChangeEntry{{Description: "Fixed a bug with Beebo", Type: changes.TypeFix, Confidence: 0.8}}

	record, err := NewRecord(Input{
		Title:       "SUPERVIVE Patch v1.2.3 Notes",
		Link:        "https://store.steampowered.com/news/app/1283780/view/1",
		PublishedAt: "Thu, 13 Mar 2025 18:30:00 +0000",
		Content:     "Big balance update. Ghost cooldown reduced.",
	}, c, testNow)
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}

	if !strings.HasPrefix(record.ID, "patch-") {
		t.Errorf("Expected patch- id prefix, got %q", record.ID)
	}
	if record.Date != "2025-03-13" {
		t.Errorf("Expected date 2025-03-13, got %q", record.Date)
	}
	if record.Version != "1.2.3" {
		t.Errorf("Expected version 1.2.3, got %q", record.Version)
	}
	if record.Summary != "Big balance update." {
		t.Errorf("Unexpected summary %q", record.Summary)
	}
	if record.SteamURL == "" || record.RawContent == "" {
		t.Errorf("Expected link and raw content to be kept, got %+v", record)
	}
	if !record.AddedAt.Equal(testNow) {
		t.Errorf("Expected addedAt %v, got %v", testNow, record.AddedAt)
	}
	if record.ChangeCount() != 1 {
		t.Errorf("Expected 1 change, got %d", record.ChangeCount())
	}
}

func TestNewRecord_UniqueIDs(t *testing.T) {
	input := Input{Title: "Hotfix", PublishedAt: "2025-03-13"}
	a, _ := NewRecord(input, nil, testNow)
	b, _ := NewRecord(input, nil, testNow)
	if a.ID == b.ID {
		t.Errorf("Expected distinct ids, got %q twice", a.ID)
	}
}

func TestNewRecord_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"missing title", Input{Title: "  ", PublishedAt: "2025-03-13"}},
		{"missing date", Input{Title: "Patch 1.0"}},
		{"bad date", Input{Title: "Patch 1.0", PublishedAt: "sometime soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := NewRecord(tt.input, nil, testNow)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("Expected ErrInvalidRecord, got %v", err)
			}
			if record != nil {
				t.Errorf("Expected no record, got %+v", record)
			}
		})
	}
}

func TestNewRecord_EmptyChanges(t *testing.T) {
	record, err := NewRecord(Input{Title: "Dev update", PublishedAt: "2025-03-13"}, nil, testNow)
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{`"hunters":[]`, `"modes":[]`, `"steamUrl":`, `"rawContent":`, `"addedAt":`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected %s in %s", key, data)
		}
	}
}

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Patch v1.2.3", "1.2.3"},
		{"Update 0.45 is live", "0.45"},
		{"Hotfix V2.1", "2.1"},
		{"Season 2 balance changes", UnknownVersion},
		{"", UnknownVersion},
	}

	for _, tt := range tests {
		if got := ExtractVersion(tt.title); got != tt.want {
			t.Errorf("ExtractVersion(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("a", 250)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"lead sentence", "First sentence. Second sentence.", "First sentence."},
		{"adds period", "No punctuation here", "No punctuation here."},
		{"keeps period", "Ends with a period.", "Ends with a period."},
		{"keeps exclamation", "Patch is live!", "Patch is live!"},
		{"first line", "Headline\nBody text follows", "Headline."},
		{"truncates", long, strings.Repeat("a", MaxSummaryLength) + "..."},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.content); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollection(t *testing.T) {
	older := Record{ID: "patch-1", Title: "Patch 1.0"}
	newer := Record{ID: "patch-2", Title: "Patch 1.1"}

	base := Collection{older}
	next := base.Prepend(newer)

	if len(base) != 1 {
		t.Errorf("Expected Prepend not to modify the receiver, got %d records", len(base))
	}
	if len(next) != 2 || next[0].ID != "patch-2" || next[1].ID != "patch-1" {
		t.Errorf("Expected newest first, got %+v", next)
	}
	if !next.HasTitle("Patch 1.0") || next.HasTitle("Patch 2.0") {
		t.Error("Unexpected HasTitle result")
	}

	found, ok := next.Find("patch-1")
	if !ok || found.Title != "Patch 1.0" {
		t.Errorf("Expected to find patch-1, got %+v", found)
	}
	if _, ok := next.Find("patch-9"); ok {
		t.Error("Expected patch-9 to be missing")
	}
}
