package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/payment"
	"dietChallengeAPI/services"
)

type Sweeper interface {
	SweepActiveChallenges(ctx context.Context) ([]*challenge.CompletionOutcome, error)
}

type Settler interface {
	PendingSettlements(ctx context.Context) ([]string, error)
	SettleChallenge(ctx context.Context, challengeID string) (*payment.RefundResult, error)
}

type ReminderSource interface {
	ClaimDueReminders(ctx context.Context, now time.Time) ([]string, error)
}

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Completed int
	Settled   int
	Failed    int
}

// RunSweep completes due challenges and settles every completed challenge that is still unpaid.
func RunSweep(ctx context.Context, sweeper Sweeper, settler Settler) (SweepReport, error) {
	var report SweepReport

	completed, err := sweeper.SweepActiveChallenges(ctx)
	if err != nil {
		return report, err
	}
	report.Completed = len(completed)

	pending, err := settler.PendingSettlements(ctx)
	if err != nil {
		return report, err
	}
	for _, id := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := settler.SettleChallenge(ctx, id); err != nil {
			if errors.Is(err, services.ErrRefundAlreadyProcessed) {
				continue
			}
			log.Printf("RunSweep: settle %s: %v", id, err)
			report.Failed++
			continue
		}
		report.Settled++
	}
	return report, nil
}

// RunReminders pushes the daily reminder to every user whose reminder is due at now.
func RunReminders(ctx context.Context, now time.Time, src ReminderSource, notifier services.Notifier) (int, error) {
	userIDs, err := src.ClaimDueReminders(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, id := range userIDs {
		notifier.Notify(ctx, services.ReminderPush(id))
	}
	return len(userIDs), nil
}

// StartSweepWorker runs RunSweep on every tick until ctx is cancelled.
func StartSweepWorker(ctx context.Context, interval time.Duration, sweeper Sweeper, settler Settler) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				report, err := RunSweep(runCtx, sweeper, settler)
				cancel()
				if err != nil {
					log.Printf("Sweep worker: %v", err)
					continue
				}
				if report != (SweepReport{}) {
					log.Printf("Sweep worker: completed=%d settled=%d failed=%d", report.Completed, report.Settled, report.Failed)
				}
			case <-ctx.Done():
				log.Println("Sweep worker stopped")
				return
			}
		}
	}()
}

// StartReminderWorker checks for due reminders on every tick until ctx is cancelled.
func StartReminderWorker(ctx context.Context, interval time.Duration, src ReminderSource, notifier services.Notifier) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, time.Minute)
				if _, err := RunReminders(runCtx, now, src, notifier); err != nil {
					log.Printf("Reminder worker: %v", err)
				}
				cancel()
			case <-ctx.Done():
				log.Println("Reminder worker stopped")
				return
			}
		}
	}()
}
