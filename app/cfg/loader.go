package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Run mode
	Mode  string `long:"mode" env:"MODE" default:"once" choice:"once" choice:"serve" choice:"parse" description:"Run one ingestion cycle, serve the API with a scheduler, or parse a single document"`
	Input string `long:"input" env:"INPUT" default:"-" description:"Patch notes file for parse mode (- for stdin)"`

	// Storage configuration
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory holding the persisted patch collection"`
	Store   string `long:"store" env:"STORE" default:"json" choice:"json" choice:"sqlite" description:"Storage backend"`

	// Feed configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	FeedURL           string `long:"feed-url" env:"FEED_URL" default:"https://store.steampowered.com/feeds/news/app/1283780/" description:"Feed used when no feed configuration files exist"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	UserAgent         string `long:"user-agent" env:"USER_AGENT" default:"Patch Comb/1.0" description:"User agent string for HTTP requests"`

	// HTTP configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Enrichment configuration
	HFToken       string        `long:"hf-token" env:"HUGGINGFACE_API_TOKEN" description:"Hugging Face inference token, enrichment is off without it"`
	HFBaseURL     string        `long:"hf-base-url" env:"HF_BASE_URL" default:"https://api-inference.huggingface.co" description:"Inference API base URL"`
	EnrichPacing  time.Duration `long:"enrich-pacing" env:"ENRICH_PACING" default:"200ms" description:"Minimum delay between inference requests"`
	EnrichRetries uint64        `long:"enrich-retries" env:"ENRICH_RETRIES" default:"3" description:"Retries per inference request on transient errors"`
	EnrichTimeout time.Duration `long:"enrich-timeout" env:"ENRICH_TIMEOUT" default:"30s" description:"Timeout of a single inference request"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses the process arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.SchedulerInterval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}
	if raw.EnrichPacing < 0 || raw.EnrichTimeout <= 0 {
		return nil, fmt.Errorf("enrichment pacing must be non-negative and timeout positive")
	}

	cfg := &Cfg{
		Mode:              raw.Mode,
		Input:             raw.Input,
		DataDir:           raw.DataDir,
		Store:             raw.Store,
		FeedsDir:          raw.FeedsDir,
		FeedURL:           raw.FeedURL,
		SchedulerInterval: raw.SchedulerInterval,
		UserAgent:         raw.UserAgent,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		HFToken:           raw.HFToken,
		HFBaseURL:         raw.HFBaseURL,
		EnrichPacing:      raw.EnrichPacing,
		EnrichRetries:     raw.EnrichRetries,
		EnrichTimeout:     raw.EnrichTimeout,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
