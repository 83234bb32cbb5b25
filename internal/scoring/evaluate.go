package scoring

import (
	"fmt"

	"dietChallengeAPI/utils"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a challenge.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Config is the challenge configuration the engine scores against.
type Config struct {
	Fee            int64
	Plan           Plan
	StartDate      string
	EndDate        string
	HabitLinkCount int
	Status         Status
}

// Validate rejects malformed configuration instead of defaulting it.
func (c Config) Validate() error {
	if !c.Plan.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, c.Plan)
	}
	if c.Fee < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeFee, c.Fee)
	}
	if c.HabitLinkCount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHabitLinkCount, c.HabitLinkCount)
	}
	if !utils.IsValidYmd(c.StartDate) || !utils.IsValidYmd(c.EndDate) || utils.IsAfterYmd(c.StartDate, c.EndDate) {
		return fmt.Errorf("%w: %s..%s", ErrInvalidWindow, c.StartDate, c.EndDate)
	}
	switch c.Status {
	case StatusActive, StatusCompleted, StatusAbandoned:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidWindow, c.Status)
	}
	return nil
}

// Result is everything derived from a challenge's record history on a given day.
type Result struct {
	RecordedDays    int              `json:"recordedDaysCount"`
	DietSuccessDays int              `json:"dietSuccessDays"`
	HasAnyFailure   bool             `json:"hasAnyFailure"`
	AchievementRate float64          `json:"achievementRate"`
	RefundAmount    int64            `json:"refundAmount"`
	RemainingAmount int64            `json:"remainingAmount"`
	Status          Status           `json:"status"`
	Reason          CompletionReason `json:"completionReason,omitempty"`
	// Transitioned is true when this evaluation moved the challenge out of active.
	Transitioned bool `json:"-"`
}

// AchievementRate is recordedDays / 30 * 100 rounded to two decimals.
func AchievementRate(recordedDays int) float64 {
	return decimal.NewFromInt(int64(recordedDays)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(ChallengeDays)).
		Round(2).
		InexactFloat64()
}

// Evaluate scores a challenge from scratch and decides whether it has to complete today.
// Terminal challenges keep their status; only active ones can transition.
func Evaluate(cfg Config, records []DailyRecord, today string) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if !utils.IsValidYmd(today) {
		return Result{}, fmt.Errorf("invalid evaluation date %q", today)
	}
	for _, rec := range records {
		if utils.IsAfterYmd(cfg.StartDate, rec.Date) || utils.IsAfterYmd(rec.Date, cfg.EndDate) {
			return Result{}, fmt.Errorf("%w: %s not in %s..%s", ErrRecordOutsideWindow, rec.Date, cfg.StartDate, cfg.EndDate)
		}
	}

	tally, err := Aggregate(records, cfg.HabitLinkCount)
	if err != nil {
		return Result{}, err
	}

	refund, err := CalculateRefund(cfg.Fee, cfg.Plan, tally.RecordedDays, tally.DietSuccessDays, tally.HasAnyFailure)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		RecordedDays:    tally.RecordedDays,
		DietSuccessDays: tally.DietSuccessDays,
		HasAnyFailure:   tally.HasAnyFailure,
		AchievementRate: AchievementRate(tally.RecordedDays),
		Status:          cfg.Status,
	}

	if cfg.Status == StatusActive {
		reason, err := DetectGameOver(cfg, records, tally, today)
		if err != nil {
			return Result{}, err
		}
		switch {
		case reason.IsGameOver():
			refund = 0
		case tally.RecordedDays >= ChallengeDays:
			reason = ReasonAllDaysRecorded
		case utils.IsAfterYmd(today, cfg.EndDate):
			reason = ReasonWindowElapsed
		}
		if reason != ReasonNone {
			res.Status = StatusCompleted
			res.Reason = reason
			res.Transitioned = true
		}
	}

	res.RefundAmount = refund
	res.RemainingAmount = cfg.Fee - refund
	return res, nil
}
