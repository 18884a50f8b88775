package api

import (
	"github.com/lysyi3m/patch-comb/app/database"
	"github.com/lysyi3m/patch-comb/app/feed"
	"github.com/lysyi3m/patch-comb/app/tasks"
)

type Handler struct {
	store       database.Store
	configCache *feed.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
}

type Stats struct {
	Patches       int            `json:"patches"`
	Changes       int            `json:"changes"`
	ByCategory    map[string]int `json:"by_category"`
	ByType        map[string]int `json:"by_type"`
	BySource      map[string]int `json:"by_source"`
	LatestVersion string         `json:"latest_version,omitempty"`
	LastCheckedAt string         `json:"last_checked_at,omitempty"`
}
