package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler drives the periodic maintenance hooks: expiry sweeps, rate-limit
// pruning, and the autosave flush. The jobs themselves are plain methods so
// tests invoke them directly without a clock.
type Scheduler struct {
	sched gocron.Scheduler
}

func StartScheduler(trades *Trades, gifts *Gifts, limiter *RateLimiter, profiles *Profiles, sweepInterval, autosaveInterval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			if n := trades.SweepExpired(); n > 0 {
				log.Printf("[scheduler] expired %d trade(s)", n)
			}
			if n := gifts.SweepExpired(); n > 0 {
				log.Printf("[scheduler] evicted %d expired gift(s)", n)
			}
			limiter.Prune()
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(autosaveInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if n := profiles.FlushDirty(ctx); n > 0 {
				log.Printf("[scheduler] autosaved %d profile(s)", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Stop() {
	if err := s.sched.Shutdown(); err != nil {
		log.Printf("[scheduler] shutdown error: %v", err)
	}
}
