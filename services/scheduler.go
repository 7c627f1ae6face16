// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartLedgerScheduler runs the background jobs: referral counter
// reconciliation every reconcileEvery and, when statements is set, the daily
// statement export for the previous UTC day.
func StartLedgerScheduler(ctx context.Context, stats *StatsService, statements *StatementService, reconcileEvery time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(reconcileEvery),
		gocron.NewTask(func() {
			n, err := stats.RefreshReferralCounters(ctx)
			if err != nil {
				log.Printf("[Scheduler] referral counter refresh failed: %v", err)
				return
			}
			log.Printf("✅ [Scheduler] refreshed referral counters for %d referrer(s)", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return nil, err
	}

	if statements != nil {
		if _, err := sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 15, 0))),
			gocron.NewTask(func() {
				yesterday := time.Now().UTC().AddDate(0, 0, -1)
				if _, err := statements.ExportDay(ctx, yesterday); err != nil {
					log.Printf("[Scheduler] statement export for %s failed: %v", yesterday.Format("2006-01-02"), err)
				}
			}),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
