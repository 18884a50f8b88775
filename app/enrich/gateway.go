package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/patch-comb/app/changes"
)

const DefaultPacing = 200 * time.Millisecond

// Service is the remote text-understanding backend. Client implements it.
type Service interface {
	Summarize(ctx context.Context, text string) (string, error)
	Classify(ctx context.Context, text string, labels []string) ([]Label, error)
}

// typeStems infer a change type from a whole chunk. They are looser than the
// heuristic parser's rules since a chunk mixes several sentences.
var typeStems = []struct {
	changeType changes.ChangeType
	re         *regexp.Regexp
}{
	{changes.TypeFix, regexp.MustCompile(`(?i)fix|bug|correct|resolve`)},
	{changes.TypeBuff, regexp.MustCompile(`(?i)increas|buff|improv|enhanc|boost`)},
	{changes.TypeNerf, regexp.MustCompile(`(?i)decreas|nerf|reduc|lower|weak`)},
	{changes.TypeNew, regexp.MustCompile(`(?i)new|add|introduc`)},
	{changes.TypeRework, regexp.MustCompile(`(?i)rework|redesign|overhaul`)},
}

type GatewayOptions struct {
	Policy         Policy
	Pacing         time.Duration
	Threshold      float64
	MaxPerCategory int // bound on each merged category
}

func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{
		Policy:         DefaultPolicy(),
		Pacing:         DefaultPacing,
		Threshold:      changes.DefaultThreshold,
		MaxPerCategory: changes.DefaultMaxPerCategory,
	}
}

// Gateway runs an optional enrichment pass and merges it into heuristic
// output. A Gateway without a Service is disabled.
type Gateway struct {
	service Service
	opts    GatewayOptions
	labels  []string
}

func NewGateway(service Service, opts GatewayOptions) *Gateway {
	if opts.MaxPerCategory <= 0 {
		opts.MaxPerCategory = changes.DefaultMaxPerCategory
	}
	labels := make([]string, 0, len(changes.Categories))
	for _, category := range changes.Categories {
		labels = append(labels, string(category))
	}
	return &Gateway{service: service, opts: opts, labels: labels}
}

func (g *Gateway) Enabled() bool {
	return g != nil && g.service != nil
}

// Enhance merges an enrichment pass over text into primary. When the gateway
// is disabled or the pass fails, primary comes back unchanged.
func (g *Gateway) Enhance(ctx context.Context, text string, primary changes.CategorizedChanges) changes.CategorizedChanges {
	if !g.Enabled() {
		return primary
	}

	enriched, err := g.Enrich(ctx, text)
	if err != nil {
		slog.Warn("Enrichment failed, keeping heuristic changes", "error", err)
		return primary
	}
	return changes.Merge(primary, enriched, g.opts.Threshold, g.opts.MaxPerCategory)
}

// Enrich summarizes and classifies every chunk of text in order. A chunk
// that still fails after its retries is skipped; an error is returned only
// when the pass is cancelled or no chunk succeeds.
func (g *Gateway) Enrich(ctx context.Context, text string) (changes.CategorizedChanges, error) {
	result := changes.NewCategorizedChanges()
	if !g.Enabled() {
		return result, nil
	}

	chunks := Chunks(text)
	if len(chunks) == 0 {
		return result, nil
	}

	p := &pacer{delay: g.opts.Pacing}
	var lastErr error
	succeeded := 0
	for i, chunk := range chunks {
		entry, category, err := g.enrichChunk(ctx, p, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("enrichment cancelled: %w", ctx.Err())
			}
			slog.Warn("Failed to enrich chunk", "chunk", i+1, "chunks", len(chunks), "error", err)
			lastErr = err
			continue
		}
		succeeded++
		result[category] = append(result[category], entry)
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("failed to enrich any of %d chunks: %w", len(chunks), lastErr)
	}

	slog.Debug("Enrichment completed", "chunks", len(chunks), "succeeded", succeeded, "changes", result.Count())
	return result, nil
}

func (g *Gateway) enrichChunk(ctx context.Context, p *pacer, chunk string) (changes.ChangeEntry, changes.Category, error) {
	summary := chunk
	if utf8.RuneCountInString(chunk) >= MinSummarizeLength {
		if err := p.wait(ctx); err != nil {
			return changes.ChangeEntry{}, "", err
		}
		var err error
		summary, err = retry(ctx, g.opts.Policy, func(ctx context.Context) (string, error) {
			return g.service.Summarize(ctx, chunk)
		})
		if err != nil {
			return changes.ChangeEntry{}, "", fmt.Errorf("failed to summarize: %w", err)
		}
	}

	if err := p.wait(ctx); err != nil {
		return changes.ChangeEntry{}, "", err
	}
	labels, err := retry(ctx, g.opts.Policy, func(ctx context.Context) ([]Label, error) {
		return g.service.Classify(ctx, chunk, g.labels)
	})
	if err != nil {
		return changes.ChangeEntry{}, "", fmt.Errorf("failed to classify: %w", err)
	}

	description := changes.CleanDescription(summary)
	if description == "" {
		return changes.ChangeEntry{}, "", fmt.Errorf("empty summary")
	}

	return changes.ChangeEntry{
		Description: description,
		Type:        inferType(chunk),
		Source:      changes.SourceEnrichment,
	}, topCategory(labels), nil
}

func inferType(chunk string) changes.ChangeType {
	for _, stem := range typeStems {
		if stem.re.MatchString(chunk) {
			return stem.changeType
		}
	}
	return changes.TypeChange
}

// topCategory maps the best label to a category, systems when it is unknown.
func topCategory(labels []Label) changes.Category {
	if len(labels) == 0 {
		return changes.CategorySystems
	}
	if category := changes.Category(labels[0].Name); category.Valid() {
		return category
	}
	return changes.CategorySystems
}

// pacer spaces outbound requests by a fixed delay. The first request of a
// pass goes out immediately.
type pacer struct {
	delay time.Duration
	sent  bool
}

func (p *pacer) wait(ctx context.Context) error {
	if !p.sent {
		p.sent = true
		return nil
	}
	if p.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
