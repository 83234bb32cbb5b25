package scoring

import "fmt"

// Outcome is the result of one linked habit on one day.
type Outcome struct {
	HabitLinkID string
	Succeeded   bool
}

// DailyRecord is one recorded calendar date and the habit outcomes saved with it.
type DailyRecord struct {
	Date     string
	Outcomes []Outcome
}

// Tally holds the counters derived from a challenge's record history.
type Tally struct {
	RecordedDays    int
	DietSuccessDays int
	HasAnyFailure   bool
}

// DaySucceeded reports whether every linked habit was recorded and succeeded on the day.
// A challenge without habit links never has a successful day.
func DaySucceeded(outcomes []Outcome, totalHabitLinks int) bool {
	if totalHabitLinks <= 0 || len(outcomes) != totalHabitLinks {
		return false
	}
	for _, o := range outcomes {
		if !o.Succeeded {
			return false
		}
	}
	return true
}

// Aggregate recomputes the tally from the full record set. It keeps no state between calls.
func Aggregate(records []DailyRecord, totalHabitLinks int) (Tally, error) {
	if totalHabitLinks < 0 {
		return Tally{}, fmt.Errorf("%w: %d", ErrInvalidHabitLinkCount, totalHabitLinks)
	}

	var tally Tally
	seenDates := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if _, dup := seenDates[rec.Date]; dup {
			return Tally{}, fmt.Errorf("%w: %s", ErrDuplicateRecordDate, rec.Date)
		}
		seenDates[rec.Date] = struct{}{}

		if len(rec.Outcomes) > totalHabitLinks {
			return Tally{}, fmt.Errorf("%w: %s has %d outcomes for %d links", ErrOutcomeOverflow, rec.Date, len(rec.Outcomes), totalHabitLinks)
		}

		seenLinks := make(map[string]struct{}, len(rec.Outcomes))
		for _, o := range rec.Outcomes {
			if _, dup := seenLinks[o.HabitLinkID]; dup {
				return Tally{}, fmt.Errorf("%w: %s on %s", ErrDuplicateOutcome, o.HabitLinkID, rec.Date)
			}
			seenLinks[o.HabitLinkID] = struct{}{}
			if !o.Succeeded {
				tally.HasAnyFailure = true
			}
		}

		tally.RecordedDays++
		if DaySucceeded(rec.Outcomes, totalHabitLinks) {
			tally.DietSuccessDays++
		}
	}

	return tally, nil
}
