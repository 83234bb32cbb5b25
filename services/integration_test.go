package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"dietChallengeAPI/internal/database"
	"dietChallengeAPI/internal/scoring"
	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/payment"
	"dietChallengeAPI/internal/types/profile"
	"dietChallengeAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

// testPool connects to TEST_DATABASE_URL and migrates it. Tests are skipped without it.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*stripe.PaymentIntent
	refunds []int64
	keys    []string
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pi := &stripe.PaymentIntent{
		ID:           "pi_test_" + uuid.NewString(),
		ClientSecret: "secret",
		Amount:       amount,
		Currency:     stripe.Currency(currency),
		Metadata:     metadata,
	}
	if f.intents == nil {
		f.intents = make(map[string]*stripe.PaymentIntent)
	}
	f.intents[pi.ID] = pi
	return pi, nil
}

func (f *fakeGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pi, ok := f.intents[paymentIntentID]
	if !ok {
		return nil, &stripe.Error{HTTPStatusCode: 404, Code: stripe.ErrorCodeResourceMissing, Msg: "No such payment_intent"}
	}
	return pi, nil
}

func (f *fakeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, idempotencyKey string, metadata map[string]string) (*stripe.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, amount)
	f.keys = append(f.keys, idempotencyKey)
	return &stripe.Refund{ID: "re_" + metadata["challenge_id"], Amount: amount}, nil
}

type fixture struct {
	ctx        context.Context
	profiles   *ProfileService
	challenges *ChallengeService
	payments   *PaymentService
	gateway    *fakeGateway
	clerkID    string
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	pool := testPool(t)
	f := &fixture{
		ctx:     context.Background(),
		gateway: &fakeGateway{},
		clerkID: "user_" + uuid.NewString(),
		now:     time.Date(2025, 3, 1, 9, 0, 0, 0, utils.JST()),
	}
	f.profiles = NewProfileService(pool, nil)
	f.payments = NewPaymentService(pool, f.gateway, "jpy")
	f.challenges = NewChallengeService(pool, nil).
		WithClock(func() time.Time { return f.now }).
		WithIntentVerifier(f.payments)

	_, err := f.profiles.CreateProfile(f.ctx, &profile.CreateProfileRequest{ClerkID: f.clerkID, Email: "test@example.com"})
	require.NoError(t, err)
	return f
}

func (f *fixture) advanceDays(n int) {
	f.now = f.now.AddDate(0, 0, n)
}

func (f *fixture) defaultHabitIDs(t *testing.T, n int) []string {
	habits, err := f.challenges.ListHabits(f.ctx, f.clerkID)
	require.NoError(t, err)

	var ids []string
	for _, h := range habits {
		if !h.IsCustom && len(ids) < n {
			ids = append(ids, h.ID)
		}
	}
	require.Len(t, ids, n)
	return ids
}

func (f *fixture) start(t *testing.T, plan scoring.Plan, fee int64) *challenge.Challenge {
	intent, err := f.payments.CreatePaymentIntent(f.ctx, f.clerkID, &payment.CreateIntentRequest{Amount: fee})
	require.NoError(t, err)

	ch, err := f.challenges.CreateChallenge(f.ctx, f.clerkID, &challenge.CreateChallengeRequest{
		CurrentWeight:    70,
		TargetWeight:     65,
		DietMethodIDs:    f.defaultHabitIDs(t, 2),
		CustomHabits:     []challenge.CustomHabitInput{{Name: "腹筋", Selected: true}, {Name: "ストレッチ"}},
		ParticipationFee: fee,
		RefundPlan:       plan,
		RecordTime:       "21:00",
		PaymentIntentID:  intent.PaymentIntentID,
	})
	require.NoError(t, err)
	return ch
}

func (f *fixture) recordToday(t *testing.T, success bool) *challenge.SaveRecordResponse {
	dash, err := f.challenges.GetDashboard(f.ctx, f.clerkID)
	require.NoError(t, err)

	var outcomes []challenge.HabitOutcome
	for i, l := range dash.HabitLinks {
		outcomes = append(outcomes, challenge.HabitOutcome{HabitLinkID: l.ID, IsSuccessful: success || i > 0, Countermeasure: "明日は頑張る"})
	}
	resp, err := f.challenges.SaveDailyRecord(f.ctx, f.clerkID, "", &challenge.SaveRecordRequest{Weight: 69.5, Outcomes: outcomes})
	require.NoError(t, err)
	return resp
}

func TestOnboardingLinksSelectedHabits(t *testing.T) {
	f := newFixture(t)
	ch := f.start(t, scoring.PlanBasic, 3000)

	assert.Equal(t, scoring.StatusActive, ch.Status)
	assert.Equal(t, "2025-03-01", ch.StartDate)
	assert.Equal(t, "2025-03-31", ch.EndDate)

	dash, err := f.challenges.GetDashboard(f.ctx, f.clerkID)
	require.NoError(t, err)
	assert.Len(t, dash.HabitLinks, 3, "two defaults plus the selected custom habit")
	assert.Equal(t, int64(3000), dash.MaxHealth)
	assert.Zero(t, dash.RecoveredAmount)
	assert.Equal(t, 1, dash.DaysElapsed)
	assert.False(t, dash.RecordedToday)
}

func TestLockedPlanIsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.challenges.CreateChallenge(f.ctx, f.clerkID, &challenge.CreateChallengeRequest{
		CurrentWeight: 70, TargetWeight: 65, RefundPlan: scoring.PlanAdvanced, ParticipationFee: 1000,
	})
	assert.ErrorIs(t, err, ErrPlanLocked)
}

func TestNewChallengeFinishesPreviousOne(t *testing.T) {
	f := newFixture(t)
	first := f.start(t, scoring.PlanBasic, 3000)
	f.recordToday(t, true)

	second := f.start(t, scoring.PlanBasic, 3000)
	assert.NotEqual(t, first.ID, second.ID)

	history, err := f.challenges.GetHistory(f.ctx, f.clerkID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, scoring.StatusCompleted, history[0].Status)
	assert.Equal(t, scoring.ReasonFinishedByPlayer, history[0].CompletionReason)
	assert.Equal(t, int64(100), history[0].RefundAmount)
}

func TestSaveDailyRecordIsUpsert(t *testing.T) {
	f := newFixture(t)
	f.profilesUnlockAll(t)
	f.start(t, scoring.PlanIntermediate, 3000)

	first := f.recordToday(t, false)
	assert.Equal(t, 1, first.Result.RecordedDays)
	assert.Zero(t, first.Result.DietSuccessDays)
	assert.Equal(t, msgIntermediateFailure, first.Message)
	assert.Contains(t, first.Record.MoodComment, "対策メモ:")

	second := f.recordToday(t, true)
	assert.Equal(t, 1, second.Result.RecordedDays)
	assert.Equal(t, 1, second.Result.DietSuccessDays)
	assert.Equal(t, int64(100), second.Result.RefundAmount)
	assert.Equal(t, first.Record.ID, second.Record.ID)
}

func TestRecordDateMustBeInsideWindow(t *testing.T) {
	f := newFixture(t)
	f.start(t, scoring.PlanBasic, 3000)

	for _, date := range []string{"2025-02-28", "2025-03-02", "not-a-date"} {
		_, err := f.challenges.SaveDailyRecord(f.ctx, f.clerkID, date, &challenge.SaveRecordRequest{Weight: 70})
		assert.ErrorIs(t, err, ErrRecordDateOutOfRange, date)
	}
}

func TestAdvancedFailureIsGameOver(t *testing.T) {
	f := newFixture(t)
	f.profilesUnlockAll(t)
	ch := f.start(t, scoring.PlanAdvanced, 9000)

	resp := f.recordToday(t, false)
	assert.True(t, resp.GameOver)
	assert.Equal(t, msgGameOver, resp.Message)
	assert.Equal(t, scoring.StatusCompleted, resp.Result.Status)
	assert.Zero(t, resp.Result.RefundAmount)

	_, err := f.challenges.GetActiveChallenge(f.ctx, f.clerkID)
	assert.ErrorIs(t, err, ErrNoActiveChallenge)

	settled, err := f.payments.ProcessRefund(f.ctx, f.clerkID, ch.ID)
	require.NoError(t, err)
	assert.True(t, settled.Skipped)
	assert.Empty(t, f.gateway.refunds)

	_, err = f.payments.ProcessRefund(f.ctx, f.clerkID, ch.ID)
	assert.ErrorIs(t, err, ErrRefundAlreadyProcessed)
}

func TestAdvancedMissedDayEndsOnNextRead(t *testing.T) {
	f := newFixture(t)
	f.profilesUnlockAll(t)
	f.start(t, scoring.PlanAdvanced, 9000)
	f.recordToday(t, true)

	f.advanceDays(2)
	dash, err := f.challenges.GetDashboard(f.ctx, f.clerkID)
	require.NoError(t, err)
	assert.Equal(t, scoring.StatusCompleted, dash.Challenge.Status)
	assert.Equal(t, scoring.ReasonMissedDay, dash.Result.Reason)
	assert.Zero(t, dash.RecoveredAmount)
	assert.Equal(t, int64(9000), dash.RemainingAmount)
}

func TestFullBasicRunRefundsAndUnlocks(t *testing.T) {
	f := newFixture(t)
	ch := f.start(t, scoring.PlanBasic, 9000)

	var last *challenge.SaveRecordResponse
	for day := 0; day < scoring.ChallengeDays; day++ {
		last = f.recordToday(t, day%2 == 0)
		f.advanceDays(1)
	}

	assert.Equal(t, scoring.StatusCompleted, last.Result.Status)
	assert.Equal(t, scoring.ReasonAllDaysRecorded, last.Result.Reason)
	assert.Equal(t, int64(9000), last.Result.RefundAmount)
	assert.Equal(t, scoring.PlanIntermediate, last.UnlockedPlan)

	plans, err := f.profiles.GetPlans(f.ctx, f.clerkID)
	require.NoError(t, err)
	assert.Equal(t, []scoring.Plan{scoring.PlanBasic, scoring.PlanIntermediate}, plans.UnlockedPlans)
	require.NotNil(t, plans.PendingUnlockNotification)

	acked, err := f.profiles.AckUnlockNotification(f.ctx, f.clerkID)
	require.NoError(t, err)
	require.NotNil(t, acked.PendingUnlockNotification)
	assert.Equal(t, scoring.PlanIntermediate, *acked.PendingUnlockNotification)

	again, err := f.profiles.AckUnlockNotification(f.ctx, f.clerkID)
	require.NoError(t, err)
	assert.Nil(t, again.PendingUnlockNotification)

	settled, err := f.payments.SettleChallenge(f.ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), settled.RefundAmount)
	assert.Equal(t, []int64{9000}, f.gateway.refunds)
	assert.Equal(t, []string{"refund-" + ch.ID}, f.gateway.keys)

	_, err = f.payments.SettleChallenge(f.ctx, ch.ID)
	assert.ErrorIs(t, err, ErrRefundAlreadyProcessed)
	assert.Len(t, f.gateway.refunds, 1)
}

func TestSweepCompletesElapsedWindow(t *testing.T) {
	f := newFixture(t)
	f.start(t, scoring.PlanBasic, 3000)
	f.recordToday(t, true)

	f.advanceDays(31)
	completed, err := f.challenges.SweepActiveChallenges(f.ctx)
	require.NoError(t, err)

	var found bool
	for _, c := range completed {
		if c.Result.Reason == scoring.ReasonWindowElapsed && c.Result.RefundAmount == 100 {
			found = true
		}
	}
	assert.True(t, found)

	_, err = f.challenges.GetActiveChallenge(f.ctx, f.clerkID)
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
}

func TestCustomHabitAddedMidChallengeIsLinkedOnNextRecord(t *testing.T) {
	f := newFixture(t)
	f.start(t, scoring.PlanBasic, 3000)

	habit, err := f.challenges.CreateCustomHabit(f.ctx, f.clerkID, &challenge.CreateCustomHabitRequest{Name: " ウォーキング "})
	require.NoError(t, err)
	assert.Equal(t, "ウォーキング", habit.Name)
	assert.True(t, habit.IsCustom)

	dash, err := f.challenges.GetDashboard(f.ctx, f.clerkID)
	require.NoError(t, err)
	require.Len(t, dash.HabitLinks, 3)

	f.recordToday(t, true)

	dash, err = f.challenges.GetDashboard(f.ctx, f.clerkID)
	require.NoError(t, err)
	require.Len(t, dash.HabitLinks, 4)

	var linked bool
	for _, l := range dash.HabitLinks {
		if l.CustomDietMethodID != nil && *l.CustomDietMethodID == habit.ID {
			linked = true
		}
	}
	assert.True(t, linked)

	// Saving again does not link it twice.
	f.recordToday(t, true)
	dash, err = f.challenges.GetDashboard(f.ctx, f.clerkID)
	require.NoError(t, err)
	assert.Len(t, dash.HabitLinks, 4)

	_, err = f.challenges.CreateCustomHabit(f.ctx, f.clerkID, &challenge.CreateCustomHabitRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidHabitName)
}

func TestPaymentIntentMustMatchChallenge(t *testing.T) {
	f := newFixture(t)
	_, err := f.challenges.CreateChallenge(f.ctx, f.clerkID, &challenge.CreateChallengeRequest{
		CurrentWeight: 70, TargetWeight: 65, RefundPlan: scoring.PlanBasic, ParticipationFee: 3000,
	})
	require.NoError(t, err)

	cheap, err := f.payments.CreatePaymentIntent(f.ctx, f.clerkID, &payment.CreateIntentRequest{Amount: 500})
	require.NoError(t, err)
	_, err = f.payments.SavePaymentIntent(f.ctx, f.clerkID, cheap.PaymentIntentID)
	assert.ErrorIs(t, err, ErrPaymentIntentMismatch)

	foreign, err := f.gateway.CreatePaymentIntent(f.ctx, 3000, "jpy", "", map[string]string{"user_id": uuid.NewString()})
	require.NoError(t, err)
	_, err = f.payments.SavePaymentIntent(f.ctx, f.clerkID, foreign.ID)
	assert.ErrorIs(t, err, ErrPaymentIntentMismatch)

	_, err = f.payments.SavePaymentIntent(f.ctx, f.clerkID, "pi_unknown")
	assert.Error(t, err)

	ch, err := f.challenges.GetActiveChallenge(f.ctx, f.clerkID)
	require.NoError(t, err)
	assert.Nil(t, ch.PaymentIntentID)

	paid, err := f.payments.CreatePaymentIntent(f.ctx, f.clerkID, &payment.CreateIntentRequest{Amount: 3000})
	require.NoError(t, err)
	ch, err = f.payments.SavePaymentIntent(f.ctx, f.clerkID, paid.PaymentIntentID)
	require.NoError(t, err)
	require.NotNil(t, ch.PaymentIntentID)
	assert.Equal(t, paid.PaymentIntentID, *ch.PaymentIntentID)

	_, err = f.challenges.CreateChallenge(f.ctx, f.clerkID, &challenge.CreateChallengeRequest{
		CurrentWeight: 70, TargetWeight: 65, RefundPlan: scoring.PlanBasic, ParticipationFee: 3000,
		PaymentIntentID: cheap.PaymentIntentID,
	})
	assert.ErrorIs(t, err, ErrPaymentIntentMismatch)

	_, err = f.challenges.GetActiveChallenge(f.ctx, f.clerkID)
	assert.NoError(t, err, "a rejected intent leaves the running challenge alone")
}

func (f *fixture) profilesUnlockAll(t *testing.T) {
	_, err := f.profiles.db.Exec(f.ctx, `
		UPDATE profiles SET unlocked_plans = ARRAY['basic', 'intermediate', 'advanced'] WHERE clerk_id = $1
	`, f.clerkID)
	require.NoError(t, err)
}
