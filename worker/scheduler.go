package worker

import (
	"context"
	"time"

	"estate-listings/utils"
)

// Scheduler queues a stale-listing sweep on a fixed interval.
type Scheduler struct {
	client   *Client
	interval time.Duration
	days     int
	logger   *utils.Logger
}

// NewScheduler creates a Scheduler. An interval of zero disables it.
func NewScheduler(client *Client, interval time.Duration, olderThanDays int, logger *utils.Logger) *Scheduler {
	return &Scheduler{client: client, interval: interval, days: olderThanDays, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("[scheduler] Periodic maintenance disabled")
		return nil
	}
	s.logger.Info("[scheduler] Deactivating listings older than %d days every %v", s.days, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			id, err := s.client.DeactivateStale(ctx, s.days)
			if err != nil {
				s.logger.Error("[scheduler] Could not queue maintenance: %v", err)
				continue
			}
			s.logger.Info("[scheduler] Queued maintenance task %s", id)
		}
	}
}
