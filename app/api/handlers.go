package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/patch-comb/app/changes"
	"github.com/lysyi3m/patch-comb/app/database"
	"github.com/lysyi3m/patch-comb/app/feed"
	"github.com/lysyi3m/patch-comb/app/patch"
	"github.com/lysyi3m/patch-comb/app/tasks"
)

func NewHandler(store database.Store, configCache *feed.ConfigCache, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		store:       store,
		configCache: configCache,
		scheduler:   scheduler,
	}
}

func (h *Handler) loadState(c *gin.Context, operation string) (*patch.State, bool) {
	state, err := h.store.Load(c.Request.Context())
	if err != nil {
		slog.Error("Storage error", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
		return nil, false
	}
	return state, true
}

func (h *Handler) GetPatches(c *gin.Context) {
	state, ok := h.loadState(c, "get_patches")
	if !ok {
		return
	}

	c.Header("X-Patch-Count", strconv.Itoa(len(state.Patches)))
	if !state.LastCheckedAt.IsZero() {
		c.Header("X-Last-Checked", state.LastCheckedAt.Format(time.RFC3339))
	}

	c.JSON(http.StatusOK, state.Patches)
}

func (h *Handler) GetPatch(c *gin.Context) {
	id := c.Param("id")

	state, ok := h.loadState(c, "get_patch")
	if !ok {
		return
	}

	record, found := state.Patches.Find(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patch not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":                "ok",
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	state, err := h.store.Load(c.Request.Context())
	if err != nil {
		slog.Error("Storage error", "operation", "health", "error", err)
		health["status"] = "degraded"
		health["storage_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health["patches"] = len(state.Patches)
	if !state.LastCheckedAt.IsZero() {
		health["last_checked_at"] = state.LastCheckedAt.In(time.Local).Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	state, ok := h.loadState(c, "get_stats")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, collectStats(state))
}

func collectStats(state *patch.State) Stats {
	stats := Stats{
		Patches:    len(state.Patches),
		ByCategory: make(map[string]int, len(changes.Categories)),
		ByType:     make(map[string]int),
		BySource:   make(map[string]int),
	}
	for _, category := range changes.Categories {
		stats.ByCategory[string(category)] = 0
	}

	for _, record := range state.Patches {
		for category, entries := range record.Changes {
			stats.ByCategory[string(category)] += len(entries)
			stats.Changes += len(entries)
			for _, entry := range entries {
				stats.ByType[string(entry.Type)]++
				if entry.Source != "" {
					stats.BySource[string(entry.Source)]++
				}
			}
		}
	}

	if len(state.Patches) > 0 {
		stats.LatestVersion = state.Patches[0].Version
	}
	if !state.LastCheckedAt.IsZero() {
		stats.LastCheckedAt = state.LastCheckedAt.In(time.Local).Format(time.RFC3339)
	}

	return stats
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetEnabledConfigs()

	feeds := make([]map[string]interface{}, 0, len(configs))
	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"max_items":        feedConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"extract_content":  feedConfig.Settings.ExtractContent,
			"enrich":           feedConfig.Settings.Enrich,
			"filters":          len(feedConfig.Filters),
		}

		if next, ok := h.scheduler.NextFetchAt(feedConfig.Name); ok {
			feedInfo["next_fetch_at"] = next.In(time.Local).Format(time.RFC3339)
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIIngestFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	task := h.scheduler.NewIngestFeedTask(feedConfig)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing ingest task", "feed", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue ingest task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Ingest task enqueued",
		"feed":    gin.H{"name": name, "url": feedConfig.URL},
		"task":    gin.H{"id": task.ID, "type": task.Type},
	})
}
