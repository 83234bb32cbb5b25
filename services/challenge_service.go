package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dietChallengeAPI/internal/notification"
	"dietChallengeAPI/internal/scoring"
	"dietChallengeAPI/internal/types/calendar"
	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/middleware"
	"dietChallengeAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntentVerifier checks that a payment intent belongs to the user and covers the fee.
type IntentVerifier interface {
	VerifyPaymentIntent(ctx context.Context, userID, paymentIntentID string, fee int64) error
}

type ChallengeService struct {
	db       *pgxpool.Pool
	notifier Notifier
	intents  IntentVerifier
	now      Clock
}

func NewChallengeService(db *pgxpool.Pool, notifier Notifier) *ChallengeService {
	return &ChallengeService{db: db, notifier: notifier, now: time.Now}
}

// WithClock replaces the service clock. Used by tests and the ops CLI.
func (s *ChallengeService) WithClock(now Clock) *ChallengeService {
	s.now = now
	return s
}

// WithIntentVerifier enables payment intent ids on CreateChallenge.
func (s *ChallengeService) WithIntentVerifier(v IntentVerifier) *ChallengeService {
	s.intents = v
	return s
}

func (s *ChallengeService) today() string {
	return utils.JstYmd(s.now())
}

// ListHabits returns the shared default habits followed by the caller's custom ones.
func (s *ChallengeService) ListHabits(ctx context.Context, clerkID string) ([]*challenge.Habit, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), question_text, FALSE
		FROM diet_methods
		WHERE is_default
		UNION ALL
		SELECT id, name, '', question_text, TRUE
		FROM custom_diet_methods
		WHERE user_id = $1
		ORDER BY 5, 2
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	habits := []*challenge.Habit{}
	for rows.Next() {
		h := &challenge.Habit{}
		if err := rows.Scan(&h.ID, &h.Name, &h.Description, &h.QuestionText, &h.IsCustom); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// CustomHabitQuestion is the question asked each day for a user-defined habit.
func CustomHabitQuestion(name string) string {
	return "今日は「" + name + "」ができましたか？"
}

// CreateCustomHabit stores a custom habit for the caller. A habit created while a challenge is
// active is linked to it on the next record save.
func (s *ChallengeService) CreateCustomHabit(ctx context.Context, clerkID string, req *challenge.CreateCustomHabitRequest) (*challenge.Habit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: blank name", ErrInvalidHabitName)
	}

	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	id, err := upsertCustomHabit(ctx, s.db, userID, name)
	if err != nil {
		return nil, err
	}
	log.Printf("CreateCustomHabit: user %s saved custom habit %s", userID, id)
	return &challenge.Habit{ID: id, Name: name, QuestionText: CustomHabitQuestion(name), IsCustom: true}, nil
}

func upsertCustomHabit(ctx context.Context, q dbtx, userID, name string) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO custom_diet_methods (user_id, name, question_text)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, userID, name, CustomHabitQuestion(name)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to save custom diet method %q: %w", name, err)
	}
	return id, nil
}

// CreateChallenge starts a new 30-day challenge. Any active challenge of the user is finished
// first, in the same transaction, so the user never has two active challenges.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	today := s.today()
	endDate, err := utils.AddDaysToYmd(today, scoring.ChallengeDays)
	if err != nil {
		return nil, err
	}

	if req.PaymentIntentID != "" {
		if s.intents == nil {
			return nil, errors.New("payment intents are not accepted without a verifier")
		}
		userID, err := profileIDByClerkID(ctx, s.db, clerkID)
		if err != nil {
			return nil, err
		}
		if err := s.intents.VerifyPaymentIntent(ctx, userID, req.PaymentIntentID, req.ParticipationFee); err != nil {
			return nil, err
		}
	}

	var created *challenge.Challenge
	var demoted *challenge.CompletionOutcome

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var userID string
		var unlocked []string
		err := tx.QueryRow(ctx, `SELECT id, unlocked_plans FROM profiles WHERE clerk_id = $1 FOR UPDATE`, clerkID).
			Scan(&userID, &unlocked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to lock profile: %w", err)
		}
		if !scoring.IsUnlocked(toPlans(unlocked), req.RefundPlan) {
			return fmt.Errorf("%w: %s", ErrPlanLocked, req.RefundPlan)
		}

		if err := s.saveOnboardingSettings(ctx, tx, userID, req); err != nil {
			return err
		}

		customIDs, err := s.upsertCustomHabits(ctx, tx, userID, req.CustomHabits)
		if err != nil {
			return err
		}
		defaultIDs, err := s.resolveDefaultHabits(ctx, tx, req.DietMethodIDs)
		if err != nil {
			return err
		}

		prev, err := activeChallenge(ctx, tx, userID, true)
		switch {
		case err == nil:
			outcome, err := s.finishTx(ctx, tx, prev, today, scoring.ReasonFinishedByPlayer)
			if err != nil {
				return err
			}
			demoted = outcome
			log.Printf("CreateChallenge: finished previous challenge %s for user %s", prev.ID, userID)
		case !errors.Is(err, ErrNoActiveChallenge):
			return err
		}

		var paymentIntentID *string
		if req.PaymentIntentID != "" {
			paymentIntentID = &req.PaymentIntentID
		}

		created, err = scanChallenge(tx.QueryRow(ctx, `
			INSERT INTO challenges (id, user_id, start_date, end_date, participation_fee, refund_plan, status,
				initial_weight, current_weight, target_weight, payment_intent_id)
			VALUES ($1, $2, $3::date, $4::date, $5, $6, 'active', $7, $7, $8, $9)
			RETURNING `+challengeColumns,
			uuid.New().String(), userID, today, endDate, req.ParticipationFee, string(req.RefundPlan),
			req.CurrentWeight, req.TargetWeight, paymentIntentID,
		))
		if err != nil {
			return fmt.Errorf("failed to insert challenge: %w", err)
		}

		for _, id := range defaultIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO challenge_diet_methods (challenge_id, diet_method_id) VALUES ($1, $2)
			`, created.ID, id); err != nil {
				return fmt.Errorf("failed to link diet method: %w", err)
			}
		}
		for _, id := range customIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO challenge_diet_methods (challenge_id, custom_diet_method_id) VALUES ($1, $2)
			`, created.ID, id); err != nil {
				return fmt.Errorf("failed to link custom diet method: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if demoted != nil {
		s.afterCompletion(ctx, demoted)
	}
	log.Printf("CreateChallenge: user %s started %s challenge %s (%s..%s)",
		created.UserID, created.RefundPlan, created.ID, created.StartDate, created.EndDate)
	return created, nil
}

func (s *ChallengeService) saveOnboardingSettings(ctx context.Context, tx pgx.Tx, userID string, req *challenge.CreateChallengeRequest) error {
	var period *string
	if req.SnackFrequencyPeriod != "" {
		period = &req.SnackFrequencyPeriod
	}
	var recordTime *string
	if req.RecordTime != "" {
		recordTime = &req.RecordTime
	}

	_, err := tx.Exec(ctx, `
		UPDATE profiles SET
			current_weight = $2,
			target_weight = $3,
			snack_frequency_period = COALESCE($4, snack_frequency_period),
			snack_frequency_count = $5,
			record_time = COALESCE($6, record_time),
			updated_at = NOW()
		WHERE id = $1
	`, userID, req.CurrentWeight, req.TargetWeight, period, req.SnackFrequencyCount, recordTime)
	if err != nil {
		return fmt.Errorf("failed to save onboarding settings: %w", err)
	}
	return nil
}

// upsertCustomHabits stores every entered custom habit once per name and returns the ids
// of the selected ones.
func (s *ChallengeService) upsertCustomHabits(ctx context.Context, tx pgx.Tx, userID string, inputs []challenge.CustomHabitInput) ([]string, error) {
	selected := make(map[string]bool)
	var names []string
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		if _, seen := selected[name]; !seen {
			names = append(names, name)
		}
		selected[name] = selected[name] || in.Selected
	}

	var ids []string
	for _, name := range names {
		id, err := upsertCustomHabit(ctx, tx, userID, name)
		if err != nil {
			return nil, err
		}
		if selected[name] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *ChallengeService) resolveDefaultHabits(ctx context.Context, tx pgx.Tx, ids []string) ([]string, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	var found int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM diet_methods WHERE id::text = ANY($1::text[])`, unique).Scan(&found); err != nil {
		return nil, fmt.Errorf("failed to resolve diet methods: %w", err)
	}
	if found != len(unique) {
		return nil, fmt.Errorf("%w: %d of %d ids not found", ErrUnknownHabit, len(unique)-found, len(unique))
	}
	return unique, nil
}

// evaluateTx scores a challenge from its stored links and records.
func (s *ChallengeService) evaluateTx(ctx context.Context, q dbtx, ch *challenge.Challenge, today string) (scoring.Result, []*challenge.HabitLink, []*challenge.DailyRecord, error) {
	links, err := loadHabitLinks(ctx, q, ch.ID)
	if err != nil {
		return scoring.Result{}, nil, nil, err
	}
	records, err := loadRecords(ctx, q, ch.ID)
	if err != nil {
		return scoring.Result{}, nil, nil, err
	}

	res, err := scoring.Evaluate(ch.ScoringConfig(len(links)), toScoringRecords(records), today)
	if err != nil {
		return scoring.Result{}, nil, nil, fmt.Errorf("failed to evaluate challenge %s: %w", ch.ID, err)
	}
	return res, links, records, nil
}

// completeTx persists a transition out of active and runs the plan unlock for the owner.
// It is a no-op when another transaction already completed the challenge.
func (s *ChallengeService) completeTx(ctx context.Context, tx pgx.Tx, ch *challenge.Challenge, res scoring.Result) (*challenge.CompletionOutcome, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE challenges
		SET status = $2, refund_amount = $3, completion_reason = $4, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, ch.ID, string(res.Status), res.RefundAmount, string(res.Reason))
	if err != nil {
		return nil, fmt.Errorf("failed to complete challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	outcome := &challenge.CompletionOutcome{ChallengeID: ch.ID, UserID: ch.UserID, Plan: ch.RefundPlan, Result: res}

	var unlocked []string
	if err := tx.QueryRow(ctx, `SELECT unlocked_plans FROM profiles WHERE id = $1 FOR UPDATE`, ch.UserID).Scan(&unlocked); err != nil {
		return nil, fmt.Errorf("failed to lock profile for unlock: %w", err)
	}

	unlock, err := scoring.Unlock(toPlans(unlocked), ch.RefundPlan, res.RecordedDays)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock plan for user %s: %w", ch.UserID, err)
	}
	if unlock.HasGrant() {
		_, err := tx.Exec(ctx, `
			UPDATE profiles
			SET unlocked_plans = $2, pending_unlock_notification = $3, updated_at = NOW()
			WHERE id = $1
		`, ch.UserID, fromPlans(unlock.Plans), string(unlock.Granted))
		if err != nil {
			return nil, fmt.Errorf("failed to save unlocked plans: %w", err)
		}
		outcome.UnlockedPlan = unlock.Granted
	}

	log.Printf("Challenge %s completed (%s): recorded=%d refund=%d unlocked=%q",
		ch.ID, res.Reason, res.RecordedDays, res.RefundAmount, outcome.UnlockedPlan)
	return outcome, nil
}

// finishTx ends an active challenge now. A due natural completion keeps its own reason.
func (s *ChallengeService) finishTx(ctx context.Context, tx pgx.Tx, ch *challenge.Challenge, today string, reason scoring.CompletionReason) (*challenge.CompletionOutcome, error) {
	res, _, _, err := s.evaluateTx(ctx, tx, ch, today)
	if err != nil {
		return nil, err
	}
	if !res.Transitioned {
		res.Status = scoring.StatusCompleted
		res.Reason = reason
		res.Transitioned = true
	}
	return s.completeTx(ctx, tx, ch, res)
}

// afterCompletion records metrics and sends best-effort pushes once the transaction committed.
func (s *ChallengeService) afterCompletion(ctx context.Context, outcome *challenge.CompletionOutcome) {
	middleware.ObserveChallengeCompleted(string(outcome.Plan), string(outcome.Result.Reason))
	if outcome.UnlockedPlan != "" {
		middleware.ObservePlanUnlocked(string(outcome.UnlockedPlan))
	}
	if s.notifier == nil {
		return
	}

	if outcome.Result.Reason.IsGameOver() {
		s.notifier.Notify(ctx, notification.Push{
			UserID: outcome.UserID,
			Type:   notification.NotificationGameOver,
			Title:  "ゲームオーバー",
			Body:   msgGameOver,
			Data:   map[string]any{"type": string(notification.NotificationGameOver), "challengeId": outcome.ChallengeID},
		})
	} else {
		s.notifier.Notify(ctx, notification.Push{
			UserID: outcome.UserID,
			Type:   notification.NotificationChallengeDone,
			Title:  "チャレンジ終了",
			Body:   fmt.Sprintf("お疲れさまでした！返金額は%d円です。", outcome.Result.RefundAmount),
			Data:   map[string]any{"type": string(notification.NotificationChallengeDone), "challengeId": outcome.ChallengeID},
		})
	}

	if outcome.UnlockedPlan != "" {
		s.notifier.Notify(ctx, notification.Push{
			UserID: outcome.UserID,
			Type:   notification.NotificationPlanUnlocked,
			Title:  "新しいプランが解放されました",
			Body:   outcome.UnlockedPlan.DisplayName() + "プランに挑戦できるようになりました！",
			Data:   map[string]any{"type": string(notification.NotificationPlanUnlocked), "plan": string(outcome.UnlockedPlan)},
		})
	}
}

// checkCompletion evaluates the user's active challenge and persists a due transition.
// It returns nil when there is no active challenge or nothing changed.
func (s *ChallengeService) checkCompletion(ctx context.Context, userID string) (*challenge.CompletionOutcome, error) {
	today := s.today()
	var outcome *challenge.CompletionOutcome

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		ch, err := activeChallenge(ctx, tx, userID, true)
		if err != nil {
			if errors.Is(err, ErrNoActiveChallenge) {
				return nil
			}
			return err
		}

		res, _, _, err := s.evaluateTx(ctx, tx, ch, today)
		if err != nil {
			return err
		}
		if !res.Transitioned {
			return nil
		}
		outcome, err = s.completeTx(ctx, tx, ch, res)
		return err
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		s.afterCompletion(ctx, outcome)
	}
	return outcome, nil
}

// SaveDailyRecord stores the record for one date of the active challenge, rescoring the challenge
// and completing it in the same transaction when the new record ends it.
func (s *ChallengeService) SaveDailyRecord(ctx context.Context, clerkID, date string, req *challenge.SaveRecordRequest) (*challenge.SaveRecordResponse, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	// A challenge that is already over (missed day, elapsed window) cannot take new records.
	if outcome, err := s.checkCompletion(ctx, userID); err != nil {
		return nil, err
	} else if outcome != nil {
		return nil, fmt.Errorf("%w: challenge %s ended (%s)", ErrNoActiveChallenge, outcome.ChallengeID, outcome.Result.Reason)
	}

	today := s.today()
	if date == "" {
		date = today
	}
	if !utils.IsValidYmd(date) {
		return nil, fmt.Errorf("%w: %q", ErrRecordDateOutOfRange, date)
	}

	resp := &challenge.SaveRecordResponse{}
	var outcome *challenge.CompletionOutcome
	var plan scoring.Plan

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		ch, err := activeChallenge(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		plan = ch.RefundPlan

		last := today
		if utils.IsAfterYmd(last, ch.EndDate) {
			last = ch.EndDate
		}
		if utils.IsAfterYmd(ch.StartDate, date) || utils.IsAfterYmd(date, last) {
			return fmt.Errorf("%w: %s not in %s..%s", ErrRecordDateOutOfRange, date, ch.StartDate, last)
		}

		if err := appendNewCustomHabits(ctx, tx, ch); err != nil {
			return err
		}
		links, err := loadHabitLinks(ctx, tx, ch.ID)
		if err != nil {
			return err
		}

		memos, err := validateOutcomes(req.Outcomes, links)
		if err != nil {
			return err
		}
		comment := ComposeMoodComment(req.MoodComment, memos)

		record := &challenge.DailyRecord{ChallengeID: ch.ID, RecordDate: date, Weight: &req.Weight, MoodComment: comment}
		err = tx.QueryRow(ctx, `
			INSERT INTO daily_records (id, challenge_id, record_date, weight, mood_comment, is_completed)
			VALUES ($1, $2, $3::date, $4, NULLIF($5, ''), TRUE)
			ON CONFLICT (challenge_id, record_date) DO UPDATE
			SET weight = EXCLUDED.weight, mood_comment = EXCLUDED.mood_comment,
			    is_completed = TRUE, updated_at = NOW()
			RETURNING id, is_completed, created_at, updated_at
		`, uuid.New().String(), ch.ID, date, req.Weight, comment).
			Scan(&record.ID, &record.IsCompleted, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert daily record: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM diet_execution_records WHERE daily_record_id = $1`, record.ID); err != nil {
			return fmt.Errorf("failed to clear habit outcomes: %w", err)
		}
		record.Outcomes = make([]challenge.HabitOutcome, 0, len(req.Outcomes))
		for _, o := range req.Outcomes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO diet_execution_records (daily_record_id, challenge_diet_method_id, is_successful)
				VALUES ($1, $2, $3)
			`, record.ID, o.HabitLinkID, o.IsSuccessful); err != nil {
				return fmt.Errorf("failed to save habit outcome: %w", err)
			}
			record.Outcomes = append(record.Outcomes, challenge.HabitOutcome{HabitLinkID: o.HabitLinkID, IsSuccessful: o.IsSuccessful})
		}

		if _, err := tx.Exec(ctx, `UPDATE challenges SET current_weight = $2, updated_at = NOW() WHERE id = $1`, ch.ID, req.Weight); err != nil {
			return fmt.Errorf("failed to update current weight: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE profiles SET current_weight = $2, updated_at = NOW() WHERE id = $1`, userID, req.Weight); err != nil {
			return fmt.Errorf("failed to update profile weight: %w", err)
		}

		res, _, _, err := s.evaluateTx(ctx, tx, ch, today)
		if err != nil {
			return err
		}
		if res.Transitioned {
			outcome, err = s.completeTx(ctx, tx, ch, res)
			if err != nil {
				return err
			}
		}

		resp.Record = record
		resp.Result = res
		resp.GameOver = res.Reason.IsGameOver()
		resp.Message = FeedbackMessage(ch.RefundPlan, allSucceeded(record.Outcomes, len(links)), res.Reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.ObserveRecordSaved(string(plan))
	if outcome != nil {
		resp.UnlockedPlan = outcome.UnlockedPlan
		s.afterCompletion(ctx, outcome)
	}
	log.Printf("SaveDailyRecord: user %s saved %s (recorded=%d refund=%d)", userID, date, resp.Result.RecordedDays, resp.Result.RefundAmount)
	return resp, nil
}

// appendNewCustomHabits links custom habits the user created after the challenge started.
// Links are only ever added.
func appendNewCustomHabits(ctx context.Context, tx pgx.Tx, ch *challenge.Challenge) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO challenge_diet_methods (challenge_id, custom_diet_method_id)
		SELECT $1, cm.id
		FROM custom_diet_methods cm
		WHERE cm.user_id = $2
		  AND cm.created_at > $3
		  AND NOT EXISTS (
			SELECT 1 FROM challenge_diet_methods cdm
			WHERE cdm.challenge_id = $1 AND cdm.custom_diet_method_id = cm.id
		  )
	`, ch.ID, ch.UserID, ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append custom habits: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("SaveDailyRecord: linked %d new custom habits to challenge %s", n, ch.ID)
	}
	return nil
}

// validateOutcomes checks that outcomes reference distinct links of the challenge and collects
// the countermeasure memos of failed habits.
func validateOutcomes(outcomes []challenge.HabitOutcome, links []*challenge.HabitLink) ([]Countermeasure, error) {
	byID := make(map[string]*challenge.HabitLink, len(links))
	for _, l := range links {
		byID[l.ID] = l
	}

	seen := make(map[string]struct{}, len(outcomes))
	var memos []Countermeasure
	for _, o := range outcomes {
		link, ok := byID[o.HabitLinkID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHabitLink, o.HabitLinkID)
		}
		if _, dup := seen[o.HabitLinkID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHabitOutcome, o.HabitLinkID)
		}
		seen[o.HabitLinkID] = struct{}{}

		if !o.IsSuccessful && o.Countermeasure != "" {
			memos = append(memos, Countermeasure{HabitName: link.Name, Memo: o.Countermeasure})
		}
	}
	return memos, nil
}

func allSucceeded(outcomes []challenge.HabitOutcome, totalLinks int) bool {
	if len(outcomes) == 0 || len(outcomes) != totalLinks {
		return false
	}
	for _, o := range outcomes {
		if !o.IsSuccessful {
			return false
		}
	}
	return true
}

// GetActiveChallenge returns the caller's active challenge without rescoring it.
func (s *ChallengeService) GetActiveChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return activeChallenge(ctx, s.db, userID, false)
}

// GetDashboard runs the completion check and returns the money-monster view. When the check
// just completed the challenge, the completed challenge is returned with the unlocked plan.
func (s *ChallengeService) GetDashboard(ctx context.Context, clerkID string) (*challenge.Dashboard, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.checkCompletion(ctx, userID)
	if err != nil {
		return nil, err
	}

	var ch *challenge.Challenge
	if outcome != nil {
		ch, err = challengeByID(ctx, s.db, outcome.ChallengeID, false)
	} else {
		ch, err = activeChallenge(ctx, s.db, userID, false)
	}
	if err != nil {
		return nil, err
	}

	today := s.today()
	res, links, records, err := s.evaluateTx(ctx, s.db, ch, today)
	if err != nil {
		return nil, err
	}
	if ch.Status != scoring.StatusActive {
		// The frozen amount wins over a recomputation for settled challenges.
		res.RefundAmount = ch.RefundAmount
		res.RemainingAmount = ch.ParticipationFee - ch.RefundAmount
		res.Reason = ch.CompletionReason
	}

	dash := &challenge.Dashboard{
		Challenge:       ch,
		HabitLinks:      links,
		Result:          res,
		MaxHealth:       ch.ParticipationFee,
		RecoveredAmount: res.RefundAmount,
		RemainingAmount: res.RemainingAmount,
	}
	for _, r := range records {
		if r.RecordDate == today {
			dash.RecordedToday = true
			break
		}
	}
	if elapsed, err := utils.DaysBetweenYmd(ch.StartDate, today); err == nil {
		dash.DaysElapsed = min(max(elapsed+1, 0), scoring.ChallengeDays)
	}
	if outcome != nil {
		dash.UnlockedPlan = outcome.UnlockedPlan
	}
	return dash, nil
}

// GetCalendar lists every date of the active challenge with its record state.
func (s *ChallengeService) GetCalendar(ctx context.Context, clerkID string) (*calendar.CalendarResponse, error) {
	ch, err := s.GetActiveChallenge(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	links, err := loadHabitLinks(ctx, s.db, ch.ID)
	if err != nil {
		return nil, err
	}
	records, err := loadRecords(ctx, s.db, ch.ID)
	if err != nil {
		return nil, err
	}
	return BuildCalendar(ch, len(links), records, s.today())
}

// BuildCalendar lays out [start, end] as recorded, unrecorded or future days.
func BuildCalendar(ch *challenge.Challenge, linkCount int, records []*challenge.DailyRecord, today string) (*calendar.CalendarResponse, error) {
	byDate := make(map[string]*challenge.DailyRecord, len(records))
	for _, r := range records {
		byDate[r.RecordDate] = r
	}

	resp := &calendar.CalendarResponse{ChallengeID: ch.ID, StartDate: ch.StartDate, EndDate: ch.EndDate}
	for day := ch.StartDate; !utils.IsAfterYmd(day, ch.EndDate); {
		entry := &calendar.CalendarDay{Date: day, IsToday: day == today}

		rec, ok := byDate[day]
		switch {
		case ok:
			entry.Status = calendar.DayRecorded
			entry.Succeeded = scoring.DaySucceeded(toScoringRecords([]*challenge.DailyRecord{rec})[0].Outcomes, linkCount)
		case utils.IsAfterYmd(day, today):
			entry.Status = calendar.DayFuture
		default:
			entry.Status = calendar.DayUnrecorded
		}
		resp.Days = append(resp.Days, entry)

		next, err := utils.AddDaysToYmd(day, 1)
		if err != nil {
			return nil, err
		}
		day = next
	}
	return resp, nil
}

// FinishChallenge ends the caller's active challenge early, e.g. to start over.
func (s *ChallengeService) FinishChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	var outcome *challenge.CompletionOutcome
	var challengeID string

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		ch, err := activeChallenge(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		challengeID = ch.ID
		outcome, err = s.finishTx(ctx, tx, ch, today, scoring.ReasonFinishedByPlayer)
		return err
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		s.afterCompletion(ctx, outcome)
	}
	return challengeByID(ctx, s.db, challengeID, false)
}

// GetHistory lists the caller's finished challenges, newest first.
func (s *ChallengeService) GetHistory(ctx context.Context, clerkID string) ([]*challenge.Challenge, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE user_id = $1 AND status <> 'active'
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenge history: %w", err)
	}
	defer rows.Close()

	history := []*challenge.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

// SweepActiveChallenges runs the completion check for every active challenge and returns
// the challenges it completed. Errors on one challenge do not stop the sweep.
func (s *ChallengeService) SweepActiveChallenges(ctx context.Context) ([]*challenge.CompletionOutcome, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM challenges WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}
	userIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read active challenges: %w", err)
	}

	var completed []*challenge.CompletionOutcome
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		outcome, err := s.checkCompletion(ctx, userID)
		if err != nil {
			log.Printf("SweepActiveChallenges: user %s: %v", userID, err)
			continue
		}
		if outcome != nil {
			completed = append(completed, outcome)
		}
	}

	log.Printf("SweepActiveChallenges: checked %d, completed %d", len(userIDs), len(completed))
	return completed, nil
}
