package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dietChallengeAPI/internal/scoring"
	"dietChallengeAPI/internal/types/challenge"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const challengeColumns = `
	id, user_id,
	to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
	participation_fee, refund_plan, status,
	initial_weight, current_weight, target_weight,
	refund_amount, COALESCE(completion_reason, ''), completed_at,
	is_refund_processed, payment_intent_id, refund_id,
	created_at, updated_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	var plan, status, reason string
	err := row.Scan(
		&c.ID, &c.UserID,
		&c.StartDate, &c.EndDate,
		&c.ParticipationFee, &plan, &status,
		&c.InitialWeight, &c.CurrentWeight, &c.TargetWeight,
		&c.RefundAmount, &reason, &c.CompletedAt,
		&c.IsRefundProcessed, &c.PaymentIntentID, &c.RefundID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.RefundPlan = scoring.Plan(plan)
	c.Status = scoring.Status(status)
	c.CompletionReason = scoring.CompletionReason(reason)
	return c, nil
}

func profileIDByClerkID(ctx context.Context, q dbtx, clerkID string) (string, error) {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfileNotFound
		}
		return "", fmt.Errorf("failed to resolve profile: %w", err)
	}
	return id, nil
}

// activeChallenge loads the user's active challenge, locking its row when forUpdate is set.
func activeChallenge(ctx context.Context, q dbtx, userID string, forUpdate bool) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE user_id = $1 AND status = 'active'`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	c, err := scanChallenge(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("failed to get active challenge: %w", err)
	}
	return c, nil
}

func challengeByID(ctx context.Context, q dbtx, challengeID string, forUpdate bool) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	c, err := scanChallenge(q.QueryRow(ctx, query, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func loadHabitLinks(ctx context.Context, q dbtx, challengeID string) ([]*challenge.HabitLink, error) {
	rows, err := q.Query(ctx, `
		SELECT cdm.id, cdm.challenge_id, cdm.diet_method_id, cdm.custom_diet_method_id,
		       COALESCE(dm.name, cm.name), COALESCE(dm.question_text, cm.question_text)
		FROM challenge_diet_methods cdm
		LEFT JOIN diet_methods dm ON dm.id = cdm.diet_method_id
		LEFT JOIN custom_diet_methods cm ON cm.id = cdm.custom_diet_method_id
		WHERE cdm.challenge_id = $1
		ORDER BY cdm.created_at, cdm.id
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habit links: %w", err)
	}
	defer rows.Close()

	links := []*challenge.HabitLink{}
	for rows.Next() {
		l := &challenge.HabitLink{}
		if err := rows.Scan(&l.ID, &l.ChallengeID, &l.DietMethodID, &l.CustomDietMethodID, &l.Name, &l.QuestionText); err != nil {
			return nil, fmt.Errorf("failed to scan habit link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habit links: %w", err)
	}
	return links, nil
}

// loadRecords returns every daily record of the challenge with its outcomes, ordered by date.
func loadRecords(ctx context.Context, q dbtx, challengeID string) ([]*challenge.DailyRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT dr.id, dr.challenge_id, to_char(dr.record_date, 'YYYY-MM-DD'), dr.weight,
		       COALESCE(dr.mood_comment, ''), dr.is_completed, dr.created_at, dr.updated_at,
		       der.challenge_diet_method_id, der.is_successful
		FROM daily_records dr
		LEFT JOIN diet_execution_records der ON der.daily_record_id = dr.id
		WHERE dr.challenge_id = $1
		ORDER BY dr.record_date, der.created_at
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily records: %w", err)
	}
	defer rows.Close()

	records := []*challenge.DailyRecord{}
	byID := make(map[string]*challenge.DailyRecord)

	for rows.Next() {
		var (
			r         challenge.DailyRecord
			linkID    *string
			succeeded *bool
		)
		if err := rows.Scan(&r.ID, &r.ChallengeID, &r.RecordDate, &r.Weight, &r.MoodComment, &r.IsCompleted,
			&r.CreatedAt, &r.UpdatedAt, &linkID, &succeeded); err != nil {
			return nil, fmt.Errorf("failed to scan daily record: %w", err)
		}

		rec, ok := byID[r.ID]
		if !ok {
			r.Outcomes = []challenge.HabitOutcome{}
			rec = &r
			byID[r.ID] = rec
			records = append(records, rec)
		}
		if linkID != nil && succeeded != nil {
			rec.Outcomes = append(rec.Outcomes, challenge.HabitOutcome{HabitLinkID: *linkID, IsSuccessful: *succeeded})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily records: %w", err)
	}
	return records, nil
}

// toScoringRecords projects stored records onto the engine's input.
func toScoringRecords(records []*challenge.DailyRecord) []scoring.DailyRecord {
	out := make([]scoring.DailyRecord, 0, len(records))
	for _, r := range records {
		outcomes := make([]scoring.Outcome, 0, len(r.Outcomes))
		for _, o := range r.Outcomes {
			outcomes = append(outcomes, scoring.Outcome{HabitLinkID: o.HabitLinkID, Succeeded: o.IsSuccessful})
		}
		out = append(out, scoring.DailyRecord{Date: r.RecordDate, Outcomes: outcomes})
	}
	return out
}

func toPlans(raw []string) []scoring.Plan {
	plans := make([]scoring.Plan, 0, len(raw))
	for _, p := range raw {
		plans = append(plans, scoring.Plan(p))
	}
	return plans
}

func fromPlans(plans []scoring.Plan) []string {
	raw := make([]string, 0, len(plans))
	for _, p := range plans {
		raw = append(raw, string(p))
	}
	return raw
}

func planPtr(raw *string) *scoring.Plan {
	if raw == nil {
		return nil
	}
	p := scoring.Plan(*raw)
	return &p
}

// Clock returns the current instant; services take one so tests can pin "today".
type Clock func() time.Time
