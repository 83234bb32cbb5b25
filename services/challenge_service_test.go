package services

import (
	"testing"

	"dietChallengeAPI/internal/types/calendar"
	"dietChallengeAPI/internal/types/challenge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func links(names ...string) []*challenge.HabitLink {
	out := make([]*challenge.HabitLink, 0, len(names))
	for i, n := range names {
		out = append(out, &challenge.HabitLink{ID: string(rune('a' + i)), Name: n})
	}
	return out
}

func TestValidateOutcomesCollectsFailedMemos(t *testing.T) {
	ls := links("散歩をする", "7時間以上しっかりと寝る")

	memos, err := validateOutcomes([]challenge.HabitOutcome{
		{HabitLinkID: "a", IsSuccessful: false, Countermeasure: "昼休みに歩く"},
		{HabitLinkID: "b", IsSuccessful: true, Countermeasure: "ignored"},
	}, ls)

	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, "散歩をする", memos[0].HabitName)
	assert.Equal(t, "昼休みに歩く", memos[0].Memo)
}

func TestValidateOutcomesRejectsUnknownAndDuplicate(t *testing.T) {
	ls := links("散歩をする")

	_, err := validateOutcomes([]challenge.HabitOutcome{{HabitLinkID: "zzz"}}, ls)
	assert.ErrorIs(t, err, ErrUnknownHabitLink)

	_, err = validateOutcomes([]challenge.HabitOutcome{{HabitLinkID: "a"}, {HabitLinkID: "a"}}, ls)
	assert.ErrorIs(t, err, ErrDuplicateHabitOutcome)
}

func TestAllSucceeded(t *testing.T) {
	ok := []challenge.HabitOutcome{{HabitLinkID: "a", IsSuccessful: true}, {HabitLinkID: "b", IsSuccessful: true}}

	assert.True(t, allSucceeded(ok, 2))
	assert.False(t, allSucceeded(ok, 3), "partial record is not a success")
	assert.False(t, allSucceeded(nil, 0))
	assert.False(t, allSucceeded([]challenge.HabitOutcome{{HabitLinkID: "a"}}, 1))
}

func TestBuildCalendar(t *testing.T) {
	ch := &challenge.Challenge{ID: "c1", StartDate: "2025-03-01", EndDate: "2025-03-31"}
	records := []*challenge.DailyRecord{
		{RecordDate: "2025-03-01", Outcomes: []challenge.HabitOutcome{{HabitLinkID: "a", IsSuccessful: true}}},
		{RecordDate: "2025-03-02", Outcomes: []challenge.HabitOutcome{{HabitLinkID: "a", IsSuccessful: false}}},
	}

	cal, err := BuildCalendar(ch, 1, records, "2025-03-04")
	require.NoError(t, err)
	require.Len(t, cal.Days, 31)

	assert.Equal(t, calendar.DayRecorded, cal.Days[0].Status)
	assert.True(t, cal.Days[0].Succeeded)
	assert.Equal(t, calendar.DayRecorded, cal.Days[1].Status)
	assert.False(t, cal.Days[1].Succeeded)
	assert.Equal(t, calendar.DayUnrecorded, cal.Days[2].Status)
	assert.Equal(t, calendar.DayUnrecorded, cal.Days[3].Status)
	assert.True(t, cal.Days[3].IsToday)
	assert.Equal(t, calendar.DayFuture, cal.Days[4].Status)
	assert.Equal(t, "2025-03-31", cal.Days[30].Date)
}
