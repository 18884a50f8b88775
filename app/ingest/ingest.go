package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/patch-comb/app/changes"
	"github.com/lysyi3m/patch-comb/app/database"
	"github.com/lysyi3m/patch-comb/app/enrich"
	"github.com/lysyi3m/patch-comb/app/patch"
)

// Item is one feed entry handed to the pipeline.
type Item struct {
	Title       string
	Link        string
	PublishedAt string
	Body        string // raw description, markup allowed
	Enrich      bool
}

type Result struct {
	Total      int
	Skipped    int // failed validation
	Duplicates int
	Added      []patch.Record
}

type Ingestor struct {
	store   database.Store
	parser  *changes.Parser
	gateway *enrich.Gateway
	now     func() time.Time
	mu      sync.Mutex
}

// NewIngestor wires the pipeline. gateway may be nil to disable enrichment.
func NewIngestor(store database.Store, parser *changes.Parser, gateway *enrich.Gateway) *Ingestor {
	if parser == nil {
		parser = changes.NewParser(nil)
	}
	return &Ingestor{
		store:   store,
		parser:  parser,
		gateway: gateway,
		now:     time.Now,
	}
}

// Build turns one item into a validated record.
func (i *Ingestor) Build(ctx context.Context, item Item) (*patch.Record, error) {
	content := changes.StripMarkup(item.Body)

	patchChanges := i.parser.Parse(item.Body)
	if item.Enrich && i.gateway.Enabled() {
		patchChanges = i.gateway.Enhance(ctx, content, patchChanges)
	}

	return patch.NewRecord(patch.Input{
		Title:       changes.StripMarkup(item.Title),
		Link:        strings.TrimSpace(item.Link),
		PublishedAt: item.PublishedAt,
		Content:     content,
	}, patchChanges, i.now())
}

// Reconcile returns the next state with records whose titles are new
// prepended in the given order, and the records that were added. state is
// not modified.
func (i *Ingestor) Reconcile(state *patch.State, records []patch.Record) (*patch.State, []patch.Record) {
	var added []patch.Record
	seen := make(map[string]bool, len(records))

	for _, record := range records {
		if seen[record.Title] || state.Patches.HasTitle(record.Title) {
			continue
		}
		seen[record.Title] = true
		added = append(added, record)
	}

	return &patch.State{
		Patches:       state.Patches.Prepend(added...),
		LastCheckedAt: i.now().UTC(),
	}, added
}

// Run performs one ingestion cycle. Only one cycle runs at a time.
func (i *Ingestor) Run(ctx context.Context, items []Item) (*Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	state, err := i.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	result := &Result{Total: len(items)}
	var records []patch.Record

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// skip the extraction work for titles already in the collection
		if state.Patches.HasTitle(changes.StripMarkup(item.Title)) {
			result.Duplicates++
			continue
		}

		record, err := i.Build(ctx, item)
		if err != nil {
			if !errors.Is(err, patch.ErrInvalidRecord) {
				return nil, fmt.Errorf("failed to build record: %w", err)
			}
			slog.Warn("Skipping invalid feed item", "title", item.Title, "error", err)
			result.Skipped++
			continue
		}
		records = append(records, *record)
	}

	next, added := i.Reconcile(state, records)
	result.Duplicates += len(records) - len(added)
	result.Added = added

	if err := i.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}

	for _, record := range added {
		slog.Debug("Patch added", "id", record.ID, "title", record.Title, "version", record.Version, "changes", record.ChangeCount())
	}

	return result, nil
}
