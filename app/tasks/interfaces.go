package tasks

import (
	"time"

	"github.com/lysyi3m/patch-comb/app/feed"
)

// TaskSchedulerInterface is what the API needs from the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	NewIngestFeedTask(feedConfig *feed.Config) *IngestFeedTask
	NextFetchAt(feedName string) (time.Time, bool)
}
