package feed

import (
	"cmp"
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	Language        string
	FeedPublishedAt *time.Time
}

type Item struct {
	GUID         string
	Title        string // markup stripped
	Link         string
	Description  string
	Content      string
	PublishedAt  time.Time
	PublishedRaw string // date as it appeared in the feed
	Categories   []string

	IsFiltered   bool
	FilterReason string
}

// Body returns the richest text the feed carried for the item.
func (i Item) Body() string {
	return cmp.Or(i.Content, i.Description)
}

// Published returns the date to build a record from, preferring the parsed
// value.
func (i Item) Published() string {
	if !i.PublishedAt.IsZero() {
		return i.PublishedAt.UTC().Format(time.RFC3339)
	}
	return i.PublishedRaw
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // fetch the article page when the item has no body
	Enrich          bool `yaml:"enrich"`          // run the inference pass on new items
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
