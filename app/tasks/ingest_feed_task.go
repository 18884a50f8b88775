package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/patch-comb/app/changes"
	"github.com/lysyi3m/patch-comb/app/feed"
	"github.com/lysyi3m/patch-comb/app/ingest"
)

const maxDocumentSize = 10 << 20

type IngestFeedTask struct {
	Task
	FeedConfig       *feed.Config
	Result           *ingest.Result
	httpClient       *http.Client
	parser           *feed.Parser
	filterer         *feed.Filterer
	contentExtractor *feed.ContentExtractor
	ingestor         *ingest.Ingestor
	userAgent        string
}

func NewIngestFeedTask(feedConfig *feed.Config, httpClient *http.Client, parser *feed.Parser, filterer *feed.Filterer,
	contentExtractor *feed.ContentExtractor, ingestor *ingest.Ingestor, userAgent string) *IngestFeedTask {
	return &IngestFeedTask{
		Task:             NewTask(TaskTypeIngestFeed, feedConfig.Name),
		FeedConfig:       feedConfig,
		httpClient:       httpClient,
		parser:           parser,
		filterer:         filterer,
		contentExtractor: contentExtractor,
		ingestor:         ingestor,
		userAgent:        userAgent,
	}
}

func (t *IngestFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	data, err := t.fetch(ctx, t.FeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	_, items, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	if maxItems := t.FeedConfig.Settings.MaxItems; maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	filteredCount := 0
	var candidates []ingest.Item
	for _, item := range t.filterer.Run(items, t.FeedConfig) {
		if item.IsFiltered {
			slog.Debug("Item filtered", "feed", t.FeedName, "title", item.Title, "reason", item.FilterReason)
			filteredCount++
			continue
		}

		body := item.Body()
		if t.FeedConfig.Settings.ExtractContent && changes.StripMarkup(body) == "" && item.Link != "" {
			body = t.extractContent(ctx, item.Link)
		}

		candidates = append(candidates, ingest.Item{
			Title:       item.Title,
			Link:        item.Link,
			PublishedAt: item.Published(),
			Body:        body,
			Enrich:      t.FeedConfig.Settings.Enrich,
		})
	}

	result, err := t.ingestor.Run(ctx, candidates)
	if err != nil {
		return fmt.Errorf("failed to ingest items: %w", err)
	}
	t.Result = result

	slog.Info("Task completed",
		"type", string(t.Type),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", len(items),
		"filtered", filteredCount,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"new", len(result.Added))

	return nil
}

// extractContent returns the article body of the item page, or "" when the
// page cannot be fetched or has no readable content.
func (t *IngestFeedTask) extractContent(ctx context.Context, link string) string {
	data, err := t.fetch(ctx, link)
	if err != nil {
		slog.Warn("Failed to fetch article page", "feed", t.FeedName, "link", link, "error", err)
		return ""
	}

	content, err := t.contentExtractor.Run(data, link)
	if err != nil {
		slog.Warn("Failed to extract content", "feed", t.FeedName, "link", link, "error", err)
		return ""
	}

	return content
}

func (t *IngestFeedTask) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	return data, nil
}
