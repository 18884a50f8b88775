package patch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/lysyi3m/patch-comb/app/changes"
)

const (
	DateLayout       = "2006-01-02"
	UnknownVersion   = "Unknown"
	MaxSummaryLength = 200
)

// ErrInvalidRecord is returned when a record is missing a mandatory field.
var ErrInvalidRecord = errors.New("invalid patch record")

var versionRe = regexp.MustCompile(`(?i)v?(\d+\.\d+\.?\d*)`)

// Record is one release's structured patch notes. Field names match the
// JSON the site already renders.
type Record struct {
	ID         string                     `json:"id"`
	Title      string                     `json:"title"`
	Date       string                     `json:"date"`
	Version    string                     `json:"version"`
	SteamURL   string                     `json:"steamUrl"`
	Summary    string                     `json:"summary"`
	Changes    changes.CategorizedChanges `json:"changes"`
	RawContent string                     `json:"rawContent"`
	AddedAt    time.Time                  `json:"addedAt"`
}

// Input is what a feed item contributes to a record.
type Input struct {
	Title       string
	Link        string
	PublishedAt string // any common date format
	Content     string // flattened plain text
}

// NewRecord validates input and builds a record stamped with now.
func NewRecord(input Input, patchChanges changes.CategorizedChanges, now time.Time) (*Record, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(input.PublishedAt) == "" {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidRecord)
	}

	published, err := dateparse.ParseAny(strings.TrimSpace(input.PublishedAt))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable date %q: %v", ErrInvalidRecord, input.PublishedAt, err)
	}

	if patchChanges == nil {
		patchChanges = changes.NewCategorizedChanges()
	}

	return &Record{
		ID:         "patch-" + uuid.NewString(),
		Title:      title,
		Date:       published.UTC().Format(DateLayout),
		Version:    ExtractVersion(title),
		SteamURL:   input.Link,
		Summary:    Summarize(input.Content),
		Changes:    patchChanges,
		RawContent: input.Content,
		AddedAt:    now.UTC(),
	}, nil
}

// ExtractVersion returns the first dotted version number in title.
func ExtractVersion(title string) string {
	if m := versionRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return UnknownVersion
}

// Summarize returns the lead sentence of content, cut to MaxSummaryLength
// characters with a "..." suffix, or closed with a period.
func Summarize(content string) string {
	lead := strings.TrimSpace(content)
	if i := strings.Index(lead, ". "); i >= 0 {
		lead = lead[:i]
	}
	if i := strings.IndexByte(lead, '\n'); i >= 0 {
		lead = strings.TrimSpace(lead[:i])
	}
	if lead == "" {
		return ""
	}

	if utf8.RuneCountInString(lead) > MaxSummaryLength {
		return string([]rune(lead)[:MaxSummaryLength]) + "..."
	}
	if strings.HasSuffix(lead, ".") || strings.HasSuffix(lead, "!") || strings.HasSuffix(lead, "?") {
		return lead
	}
	return lead + "."
}

// ChangeCount is the number of change entries across all categories.
func (r *Record) ChangeCount() int {
	return r.Changes.Count()
}
