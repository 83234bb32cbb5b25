package scoring

import "dietChallengeAPI/utils"

// CompletionReason explains why a challenge left the active state.
type CompletionReason string

const (
	ReasonNone             CompletionReason = ""
	ReasonFailedHabit      CompletionReason = "game_over_failed_habit"
	ReasonMissedDay        CompletionReason = "game_over_missed_day"
	ReasonWindowElapsed    CompletionReason = "window_elapsed"
	ReasonAllDaysRecorded  CompletionReason = "all_days_recorded"
	ReasonFinishedByPlayer CompletionReason = "finished_by_player"
)

// IsGameOver reports whether the reason is an early termination of an advanced challenge.
func (r CompletionReason) IsGameOver() bool {
	return r == ReasonFailedHabit || r == ReasonMissedDay
}

// DetectGameOver checks the two early-termination triggers of the advanced plan.
// Other plans never end early.
//
// The missed-day trigger looks at every date from the start up to the day before today
// (capped at the end date). Evaluated once per day this is the same as checking only
// yesterday, and it still fires when a day passes without any evaluation.
func DetectGameOver(cfg Config, records []DailyRecord, tally Tally, today string) (CompletionReason, error) {
	if cfg.Plan != PlanAdvanced {
		return ReasonNone, nil
	}
	if tally.HasAnyFailure {
		return ReasonFailedHabit, nil
	}
	if !utils.IsAfterYmd(today, cfg.StartDate) {
		return ReasonNone, nil
	}

	last, err := utils.AddDaysToYmd(today, -1)
	if err != nil {
		return ReasonNone, err
	}
	if utils.IsAfterYmd(last, cfg.EndDate) {
		last = cfg.EndDate
	}

	recorded := make(map[string]struct{}, len(records))
	for _, rec := range records {
		recorded[rec.Date] = struct{}{}
	}

	for day := cfg.StartDate; !utils.IsAfterYmd(day, last); {
		if _, ok := recorded[day]; !ok {
			return ReasonMissedDay, nil
		}
		day, err = utils.AddDaysToYmd(day, 1)
		if err != nil {
			return ReasonNone, err
		}
	}
	return ReasonNone, nil
}
