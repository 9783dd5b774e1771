package metrics

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/objcache/objcache/logging/logger"
)

// PruneSchedule is the recurring prune cadence.
const PruneSchedule = "@hourly"

// Janitor prunes the measurement time series on a recurring schedule.
type Janitor struct {
	cron    *cron.Cron
	storage *Storage
	log     *logger.Logger
}

// NewJanitor schedules hourly pruning for the storage.
func NewJanitor(storage *Storage, log *logger.Logger) (*Janitor, error) {
	if log == nil {
		log = logger.StandardLogger()
	}

	j := &Janitor{
		cron:    cron.New(),
		storage: storage,
		log:     log,
	}

	_, err := j.cron.AddFunc(PruneSchedule, func() {
		removed := j.storage.Prune(context.Background())
		j.log.WithFields(logger.Fields{"removed": removed}).Debug("measurements pruned")
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule; a prune already in flight completes.
func (j *Janitor) Stop() { j.cron.Stop() }
