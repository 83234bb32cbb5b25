package scoring

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietChallengeAPI/utils"
)

const start = "2025-01-01"

func dates(t *testing.T, from string, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		d, err := utils.AddDaysToYmd(from, i)
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func record(date string, results ...bool) DailyRecord {
	rec := DailyRecord{Date: date}
	for i, ok := range results {
		rec.Outcomes = append(rec.Outcomes, Outcome{HabitLinkID: fmt.Sprintf("link-%d", i), Succeeded: ok})
	}
	return rec
}

func config(plan Plan, fee int64, links int) Config {
	end, _ := utils.AddDaysToYmd(start, ChallengeDays)
	return Config{Fee: fee, Plan: plan, StartDate: start, EndDate: end, HabitLinkCount: links, Status: StatusActive}
}

func TestCalculateRefundScenarios(t *testing.T) {
	got, err := CalculateRefund(9000, PlanBasic, 15, 0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 4500, got)

	got, err = CalculateRefund(9000, PlanIntermediate, 20, 10, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3000, got)

	got, err = CalculateRefund(9000, PlanAdvanced, 30, 30, false)
	require.NoError(t, err)
	assert.EqualValues(t, 9000, got)
}

func TestCalculateRefundBasicFloorsAndNeverExceedsFee(t *testing.T) {
	for _, fee := range []int64{0, 1, 29, 1000, 2999, 9000, 12345} {
		for days := 0; days <= ChallengeDays; days++ {
			got, err := CalculateRefund(fee, PlanBasic, days, 0, false)
			require.NoError(t, err)
			assert.Equal(t, fee*int64(days)/30, got)
			assert.LessOrEqual(t, got, fee)
			assert.GreaterOrEqual(t, got, int64(0))
		}
	}

	got, err := CalculateRefund(1000, PlanBasic, 1, 0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 33, got)
}

func TestCalculateRefundIntermediateBoundedByFee(t *testing.T) {
	for recorded := 0; recorded <= ChallengeDays; recorded++ {
		for success := 0; success <= recorded; success++ {
			got, err := CalculateRefund(7777, PlanIntermediate, recorded, success, false)
			require.NoError(t, err)
			assert.LessOrEqual(t, got, int64(7777))
		}
	}
}

func TestCalculateRefundAdvancedAllOrNothing(t *testing.T) {
	got, err := CalculateRefund(5000, PlanAdvanced, 30, 0, true)
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = CalculateRefund(5000, PlanAdvanced, 29, 29, false)
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = CalculateRefund(5000, PlanAdvanced, 5, 5, true)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCalculateRefundRejectsOutOfRange(t *testing.T) {
	_, err := CalculateRefund(-1, PlanBasic, 1, 0, false)
	assert.ErrorIs(t, err, ErrNegativeFee)

	_, err = CalculateRefund(100, PlanBasic, 31, 0, false)
	assert.ErrorIs(t, err, ErrDaysOutOfRange)

	_, err = CalculateRefund(100, PlanBasic, -1, 0, false)
	assert.ErrorIs(t, err, ErrDaysOutOfRange)

	_, err = CalculateRefund(100, PlanIntermediate, 3, 4, false)
	assert.ErrorIs(t, err, ErrDaysOutOfRange)

	_, err = CalculateRefund(100, Plan("expert"), 3, 0, false)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestCalculateRefundLargeFeesDoNotOverflow(t *testing.T) {
	fee := int64(math.MaxInt64 / 10)

	got, err := CalculateRefund(fee, PlanBasic, 30, 0, false)
	require.NoError(t, err)
	assert.Equal(t, fee, got)

	got, err = CalculateRefund(fee, PlanIntermediate, 30, 20, false)
	require.NoError(t, err)
	assert.Equal(t, int64(614891469123651720), got)

	got, err = CalculateRefund(math.MaxInt64, PlanBasic, 29, 0, false)
	require.NoError(t, err)
	assert.Equal(t, int64(8915926302292949946), got)

	got, err = CalculateRefund(math.MaxInt64, PlanIntermediate, 30, 30, false)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)
}

func TestAggregateCountsOnlyFullySuccessfulDays(t *testing.T) {
	records := []DailyRecord{
		record("2025-01-01", true, true, true),
		record("2025-01-02", true, false, true),
		record("2025-01-03", true, true), // partial: never counts
		record("2025-01-04"),
	}

	tally, err := Aggregate(records, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, tally.RecordedDays)
	assert.Equal(t, 1, tally.DietSuccessDays)
	assert.True(t, tally.HasAnyFailure)
	assert.LessOrEqual(t, tally.DietSuccessDays, tally.RecordedDays)
}

func TestAggregateIsRepeatable(t *testing.T) {
	records := []DailyRecord{record("2025-01-01", true), record("2025-01-02", false)}

	first, err := Aggregate(records, 1)
	require.NoError(t, err)
	second, err := Aggregate(records, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregateZeroHabitLinks(t *testing.T) {
	tally, err := Aggregate([]DailyRecord{record("2025-01-01"), record("2025-01-02")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, tally.RecordedDays)
	assert.Zero(t, tally.DietSuccessDays)
}

func TestAggregateSurfacesInconsistentInput(t *testing.T) {
	_, err := Aggregate([]DailyRecord{record("2025-01-01", true, true)}, 1)
	assert.ErrorIs(t, err, ErrOutcomeOverflow)

	_, err = Aggregate(nil, -1)
	assert.ErrorIs(t, err, ErrInvalidHabitLinkCount)

	_, err = Aggregate([]DailyRecord{record("2025-01-01"), record("2025-01-01")}, 0)
	assert.ErrorIs(t, err, ErrDuplicateRecordDate)

	dup := DailyRecord{Date: "2025-01-01", Outcomes: []Outcome{{HabitLinkID: "a", Succeeded: true}, {HabitLinkID: "a", Succeeded: true}}}
	_, err = Aggregate([]DailyRecord{dup}, 2)
	assert.ErrorIs(t, err, ErrDuplicateOutcome)
}

func TestEvaluateAdvancedFailureIsImmediateGameOver(t *testing.T) {
	cfg := config(PlanAdvanced, 9000, 2)
	var records []DailyRecord
	for i, d := range dates(t, start, 5) {
		records = append(records, record(d, true, i != 3))
	}

	res, err := Evaluate(cfg, records, "2025-01-05")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, ReasonFailedHabit, res.Reason)
	assert.True(t, res.Transitioned)
	assert.Zero(t, res.RefundAmount)
	assert.EqualValues(t, 9000, res.RemainingAmount)
	assert.Equal(t, 5, res.RecordedDays)
}

func TestEvaluateAdvancedMissedDay(t *testing.T) {
	cfg := config(PlanAdvanced, 9000, 1)
	records := []DailyRecord{record("2025-01-01", true), record("2025-01-02", true)}

	// Day 3 with day 2 recorded: still alive.
	res, err := Evaluate(cfg, records, "2025-01-03")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, res.Status)

	// Day 4 with day 3 missing: game over.
	res, err = Evaluate(cfg, records, "2025-01-04")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, ReasonMissedDay, res.Reason)
	assert.Zero(t, res.RefundAmount)
}

func TestEvaluateAdvancedFirstDayNeverMissed(t *testing.T) {
	res, err := Evaluate(config(PlanAdvanced, 9000, 1), nil, start)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, res.Status)
	assert.Equal(t, ReasonNone, res.Reason)
}

func TestEvaluateAdvancedPerfectRun(t *testing.T) {
	cfg := config(PlanAdvanced, 9000, 2)
	var records []DailyRecord
	for _, d := range dates(t, start, 30) {
		records = append(records, record(d, true, true))
	}

	res, err := Evaluate(cfg, records, "2025-01-30")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, ReasonAllDaysRecorded, res.Reason)
	assert.EqualValues(t, 9000, res.RefundAmount)
	assert.Zero(t, res.RemainingAmount)
	assert.Equal(t, 100.0, res.AchievementRate)
}

func TestEvaluateBasicRunsFullWindow(t *testing.T) {
	cfg := config(PlanBasic, 9000, 1)
	var records []DailyRecord
	for _, d := range dates(t, start, 15) {
		records = append(records, record(d, false))
	}

	// Failures and gaps never end a basic challenge early.
	res, err := Evaluate(cfg, records, "2025-01-25")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, res.Status)
	assert.EqualValues(t, 4500, res.RefundAmount)
	assert.Equal(t, 50.0, res.AchievementRate)

	res, err = Evaluate(cfg, records, "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, ReasonWindowElapsed, res.Reason)
	assert.EqualValues(t, 4500, res.RefundAmount)
}

func TestEvaluateIntermediate(t *testing.T) {
	cfg := config(PlanIntermediate, 9000, 2)
	var records []DailyRecord
	for i, d := range dates(t, start, 20) {
		records = append(records, record(d, true, i%2 == 0))
	}

	res, err := Evaluate(cfg, records, "2025-01-20")
	require.NoError(t, err)
	assert.Equal(t, 20, res.RecordedDays)
	assert.Equal(t, 10, res.DietSuccessDays)
	assert.EqualValues(t, 3000, res.RefundAmount)
	assert.Equal(t, StatusActive, res.Status)
}

func TestEvaluateTerminalChallengeDoesNotTransition(t *testing.T) {
	cfg := config(PlanAdvanced, 9000, 1)
	cfg.Status = StatusCompleted

	res, err := Evaluate(cfg, []DailyRecord{record(start, false)}, "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.Transitioned)
	assert.Zero(t, res.RefundAmount)
}

func TestEvaluateRejectsBadConfig(t *testing.T) {
	cfg := config(Plan("gold"), 9000, 1)
	_, err := Evaluate(cfg, nil, start)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	cfg = config(PlanBasic, 9000, -1)
	_, err = Evaluate(cfg, nil, start)
	assert.ErrorIs(t, err, ErrInvalidHabitLinkCount)

	cfg = config(PlanBasic, 9000, 1)
	_, err = Evaluate(cfg, []DailyRecord{record("2024-12-31", true)}, start)
	assert.ErrorIs(t, err, ErrRecordOutsideWindow)
}

func TestAchievementRateRounding(t *testing.T) {
	assert.Equal(t, 3.33, AchievementRate(1))
	assert.Equal(t, 66.67, AchievementRate(20))
	assert.Equal(t, 0.0, AchievementRate(0))
}

func TestUnlockGrantsSuccessorOnce(t *testing.T) {
	res, err := Unlock([]Plan{PlanBasic}, PlanBasic, 30)
	require.NoError(t, err)
	assert.Equal(t, []Plan{PlanBasic, PlanIntermediate}, res.Plans)
	assert.Equal(t, PlanIntermediate, res.Granted)
	assert.True(t, res.HasGrant())

	again, err := Unlock(res.Plans, PlanBasic, 30)
	require.NoError(t, err)
	assert.Equal(t, []Plan{PlanBasic, PlanIntermediate}, again.Plans)
	assert.False(t, again.HasGrant())
}

func TestUnlockRequiresEveryDayRecorded(t *testing.T) {
	res, err := Unlock([]Plan{PlanBasic, PlanIntermediate}, PlanIntermediate, 29)
	require.NoError(t, err)
	assert.False(t, res.HasGrant())
	assert.Equal(t, []Plan{PlanBasic, PlanIntermediate}, res.Plans)

	res, err = Unlock([]Plan{PlanBasic, PlanIntermediate}, PlanIntermediate, 30)
	require.NoError(t, err)
	assert.Equal(t, PlanAdvanced, res.Granted)
}

func TestUnlockAdvancedIsTerminal(t *testing.T) {
	all := []Plan{PlanBasic, PlanIntermediate, PlanAdvanced}
	res, err := Unlock(all, PlanAdvanced, 30)
	require.NoError(t, err)
	assert.False(t, res.HasGrant())
	assert.Equal(t, all, res.Plans)
}

func TestUnlockDoesNotMutateInput(t *testing.T) {
	in := make([]Plan, 1, 3)
	in[0] = PlanBasic
	res, err := Unlock(in, PlanBasic, 30)
	require.NoError(t, err)
	assert.Len(t, in, 1)
	assert.Len(t, res.Plans, 2)
}

func TestUnlockRejectsMalformedState(t *testing.T) {
	_, err := Unlock(nil, PlanBasic, 30)
	assert.ErrorIs(t, err, ErrInvalidUnlockedPlans)

	_, err = Unlock([]Plan{PlanIntermediate}, PlanIntermediate, 30)
	assert.ErrorIs(t, err, ErrInvalidUnlockedPlans)

	_, err = Unlock([]Plan{PlanBasic}, PlanAdvanced, 30)
	assert.ErrorIs(t, err, ErrInvalidUnlockedPlans)
}

func TestPlanOrdering(t *testing.T) {
	next, ok := PlanBasic.Next()
	assert.True(t, ok)
	assert.Equal(t, PlanIntermediate, next)

	_, ok = PlanAdvanced.Next()
	assert.False(t, ok)

	_, err := ParsePlan("platinum")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	p, err := ParsePlan("advanced")
	require.NoError(t, err)
	assert.Equal(t, PlanAdvanced, p)
}
