package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/patch-comb/app/api"
	"github.com/lysyi3m/patch-comb/app/cfg"
	"github.com/lysyi3m/patch-comb/app/changes"
	"github.com/lysyi3m/patch-comb/app/database"
	"github.com/lysyi3m/patch-comb/app/enrich"
	"github.com/lysyi3m/patch-comb/app/feed"
	"github.com/lysyi3m/patch-comb/app/ingest"
	"github.com/lysyi3m/patch-comb/app/tasks"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if c == nil {
		return
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch c.Mode {
	case cfg.ModeParse:
		err = runParse(ctx)
	case cfg.ModeServe:
		err = runServe(ctx)
	default:
		err = runOnce(ctx)
	}

	if err != nil {
		slog.Error("Patch Comb stopped with error", "mode", c.Mode, "error", err)
		stop()
		os.Exit(1)
	}
}

func newGateway() *enrich.Gateway {
	c := cfg.Get()
	if !c.EnrichmentEnabled() {
		return nil
	}

	opts := enrich.DefaultGatewayOptions()
	opts.Pacing = c.EnrichPacing
	opts.Policy.MaxRetries = c.EnrichRetries

	return enrich.NewGateway(enrich.NewClient(c.HFBaseURL, c.HFToken, c.EnrichTimeout), opts)
}

// runParse prints the categorized changes of a single document.
func runParse(ctx context.Context) error {
	c := cfg.Get()

	var (
		data []byte
		err  error
	)
	if c.Input == "" || c.Input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(c.Input)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	raw := string(data)
	result := changes.NewParser(nil).Parse(raw)

	if gateway := newGateway(); gateway.Enabled() {
		result = gateway.Enhance(ctx, changes.StripMarkup(raw), result)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}
	out = append(out, '\n')

	if _, err := os.Stdout.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

type pipeline struct {
	store       database.Store
	configCache *feed.ConfigCache
	scheduler   *tasks.Scheduler
}

func newPipeline() (*pipeline, error) {
	c := cfg.Get()

	store, err := database.Open(c.Store, c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	configCache := feed.NewConfigCache(c.FeedsDir)
	if err := configCache.Run(c.FeedURL); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load feed configurations: %w", err)
	}

	parser := changes.NewParser(nil)
	ingestor := ingest.NewIngestor(store, parser, newGateway())

	scheduler := tasks.NewScheduler(
		configCache,
		ingestor,
		&http.Client{},
		feed.NewParser(),
		feed.NewFilterer(parser.Dictionary()),
		feed.NewContentExtractor(),
		tasks.SchedulerOptions{
			Interval:  time.Duration(c.SchedulerInterval) * time.Second,
			UserAgent: c.UserAgent,
		},
	)

	slog.Info("Pipeline initialized",
		"store", c.Store,
		"data_dir", c.DataDir,
		"feeds", configCache.GetConfigCount(),
		"enrichment", c.EnrichmentEnabled())

	return &pipeline{store: store, configCache: configCache, scheduler: scheduler}, nil
}

func runOnce(ctx context.Context) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.store.Close()

	return p.scheduler.RunOnce(ctx)
}

func runServe(ctx context.Context) error {
	c := cfg.Get()

	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.store.Close()

	p.scheduler.Start()
	defer p.scheduler.Stop()

	handler := api.NewHandler(p.store, p.configCache, p.scheduler)
	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(handler, c.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server started", "port", c.Port, "api_enabled", c.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	slog.Info("Patch Comb server stopped")
	return nil
}
