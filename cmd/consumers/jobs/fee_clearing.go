package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gigbook/internal/models"
)

// FeeClearer releases pending fees whose dispute window has passed.
type FeeClearer interface {
	ClearDueFees(ctx context.Context) (*models.ClearFeesResponse, error)
}

// FeeClearingJob runs the clearer on a fixed interval
type FeeClearingJob struct {
	clearer  FeeClearer
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	running  sync.Mutex
}

// NewFeeClearingJob creates a new fee clearing job
func NewFeeClearingJob(clearer FeeClearer, interval time.Duration) *FeeClearingJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &FeeClearingJob{
		clearer:  clearer,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval
func (j *FeeClearingJob) Start(ctx context.Context) {
	slog.Info("Starting fee clearing job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	go j.clearDueFees(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.clearDueFees(ctx)
			case <-j.done:
				slog.Info("Fee clearing job stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *FeeClearingJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// clearDueFees skips the tick when the previous pass is still running.
func (j *FeeClearingJob) clearDueFees(ctx context.Context) {
	if !j.running.TryLock() {
		slog.Debug("Previous fee clearing pass still running")
		return
	}
	defer j.running.Unlock()

	start := time.Now()
	resp, err := j.clearer.ClearDueFees(ctx)
	if err != nil {
		slog.Error("Failed to clear due fees", "error", err)
		return
	}

	if len(resp.Cleared) == 0 && len(resp.Failed) == 0 {
		slog.Debug("No fees due for clearing")
		return
	}

	slog.Info("Cleared due fees",
		"cleared", len(resp.Cleared),
		"failed", len(resp.Failed),
		"elapsed", time.Since(start).String())
	for _, id := range resp.Failed {
		slog.Error("Fee could not be cleared", "fee_id", id)
	}
}
