package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDietMethod is a shared habit offered to every user during onboarding.
type DefaultDietMethod struct {
	Name         string
	Description  string
	QuestionText string
}

var DefaultDietMethods = []DefaultDietMethod{
	{
		Name:         "12時間ファスティング（朝ごはんを抜く）",
		Description:  "朝ごはんを抜いて12時間の断食を行う",
		QuestionText: "今日は12時間ファスティングができましたか？",
	},
	{
		Name:         "お菓子の代替品を摂取する",
		Description:  "お菓子の代わりにナッツなどの健康的な食品を摂取する",
		QuestionText: "今日はお菓子の代わりに体に良いものを食べましたか？",
	},
	{
		Name:         "お酒やジュースの代替品を摂取する",
		Description:  "お酒やジュースの代わりに水やお茶を飲む",
		QuestionText: "今日はお酒やジュースの代わりに水やお茶を飲みましたか？",
	},
	{
		Name:         "散歩をする",
		Description:  "散歩などの軽い運動を行う",
		QuestionText: "今日は散歩をしましたか？",
	},
	{
		Name:         "7時間以上しっかりと寝る",
		Description:  "7時間以上の質の良い睡眠を取る",
		QuestionText: "今日は7時間以上寝ましたか？",
	},
}

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		clerk_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		current_weight DOUBLE PRECISION,
		target_weight DOUBLE PRECISION,
		snack_frequency_period TEXT CHECK (snack_frequency_period IN ('day', 'week', 'month')),
		snack_frequency_count INTEGER,
		record_time TEXT,
		unlocked_plans TEXT[] NOT NULL DEFAULT ARRAY['basic'],
		pending_unlock_notification TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS diet_methods (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		question_text TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS custom_diet_methods (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		question_text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS challenges (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		participation_fee BIGINT NOT NULL DEFAULT 0 CHECK (participation_fee >= 0),
		refund_plan TEXT NOT NULL DEFAULT 'basic' CHECK (refund_plan IN ('basic', 'intermediate', 'advanced')),
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'abandoned')),
		initial_weight DOUBLE PRECISION,
		current_weight DOUBLE PRECISION,
		target_weight DOUBLE PRECISION,
		refund_amount BIGINT NOT NULL DEFAULT 0,
		completion_reason TEXT,
		completed_at TIMESTAMPTZ,
		is_refund_processed BOOLEAN NOT NULL DEFAULT FALSE,
		payment_intent_id TEXT,
		refund_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (end_date >= start_date)
	)`,
	// At most one active challenge per user.
	`CREATE UNIQUE INDEX IF NOT EXISTS challenges_one_active_per_user
		ON challenges (user_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS challenge_diet_methods (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		diet_method_id UUID REFERENCES diet_methods(id),
		custom_diet_method_id UUID REFERENCES custom_diet_methods(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((diet_method_id IS NULL) <> (custom_diet_method_id IS NULL)),
		UNIQUE (challenge_id, diet_method_id),
		UNIQUE (challenge_id, custom_diet_method_id)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_records (
		id UUID PRIMARY KEY,
		challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		record_date DATE NOT NULL,
		weight DOUBLE PRECISION,
		mood_comment TEXT,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (challenge_id, record_date)
	)`,
	`CREATE TABLE IF NOT EXISTS diet_execution_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		daily_record_id UUID NOT NULL REFERENCES daily_records(id) ON DELETE CASCADE,
		challenge_diet_method_id UUID NOT NULL REFERENCES challenge_diet_methods(id) ON DELETE CASCADE,
		is_successful BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (daily_record_id, challenge_diet_method_id)
	)`,
	`CREATE TABLE IF NOT EXISTS device_tokens (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL DEFAULT 'android',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_deliveries (
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		reminder_date DATE NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, reminder_date)
	)`,
	`CREATE TABLE IF NOT EXISTS contact_messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		subject TEXT NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'resolved')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the schema and seeds the default diet methods. Safe to run repeatedly.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		for _, m := range DefaultDietMethods {
			_, err := tx.Exec(ctx, `
				INSERT INTO diet_methods (name, description, question_text, is_default)
				VALUES ($1, $2, $3, TRUE)
				ON CONFLICT (name) DO NOTHING
			`, m.Name, m.Description, m.QuestionText)
			if err != nil {
				return fmt.Errorf("seed diet method %q: %w", m.Name, err)
			}
		}
		return nil
	})
}
