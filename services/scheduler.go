// services/scheduler.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"task-staking-system/metrics"
	"task-staking-system/storage"
)

// StreakSweeper breaks the streak of users who let a deadline pass without a
// verified task. Each run covers deadlines in (last run, now].
type StreakSweeper struct {
	store   storage.Store
	metrics *metrics.Metrics
	log     *logrus.Entry
	now     func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

func NewStreakSweeper(store storage.Store, m *metrics.Metrics, log *logrus.Entry) *StreakSweeper {
	return &StreakSweeper{
		store:   store,
		metrics: m,
		log:     log.WithField("component", "streak-sweeper"),
		now:     time.Now,
		lastRun: time.Now(),
	}
}

func (s *StreakSweeper) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tasks, err := s.store.ListLapsedTasks(ctx, s.lastRun, now)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(tasks))
	var owners []string
	for _, t := range tasks {
		if !seen[t.UserAddress] {
			seen[t.UserAddress] = true
			owners = append(owners, t.UserAddress)
		}
	}

	var reset int64
	if len(owners) > 0 {
		reset, err = s.store.ResetStreaks(ctx, owners)
		if err != nil {
			return 0, err
		}
	}
	s.lastRun = now
	if reset > 0 {
		s.metrics.StreaksReset.Add(float64(reset))
		s.log.WithFields(logrus.Fields{"lapsed_tasks": len(tasks), "streaks_reset": reset}).Info("streaks reset")
	}
	return reset, nil
}

// StartStreakScheduler runs the sweeper every interval until the returned
// scheduler is shut down.
func StartStreakScheduler(ctx context.Context, sweeper *StreakSweeper, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := sweeper.Sweep(ctx); err != nil {
				sweeper.log.WithError(err).Error("[Scheduler] streak sweep failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
