package cfg

import (
	"time"
)

const (
	ModeOnce  = "once"
	ModeServe = "serve"
	ModeParse = "parse"
)

type Cfg struct {
	// Run mode
	Mode  string
	Input string // parse mode input file, "-" for stdin

	// Storage configuration
	DataDir string
	Store   string

	// Feed configuration
	FeedsDir          string
	FeedURL           string
	SchedulerInterval int
	UserAgent         string

	// HTTP configuration
	Port         string
	APIAccessKey string

	// Enrichment configuration
	HFToken       string
	HFBaseURL     string
	EnrichPacing  time.Duration
	EnrichRetries uint64
	EnrichTimeout time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// EnrichmentEnabled reports whether an inference token was configured.
func (c *Cfg) EnrichmentEnabled() bool {
	return c.HFToken != ""
}
