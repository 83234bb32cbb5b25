package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"dietChallengeAPI/internal/notification"
	"dietChallengeAPI/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

const reminderTitle = "今日の記録をしましょう"
const reminderBody = "今日の体重とダイエットの結果を記録して、お金モンスターを倒しましょう！"

type NotificationService struct {
	db *pgxpool.Pool
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

// RegisterDevice stores an FCM token for the caller. A token moves to whoever registered it last.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req notification.RegisterDeviceRequest) error {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO device_tokens (user_id, token, platform)
	VALUES ($1, $2, $3)
	ON CONFLICT (token) DO UPDATE
	SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) TokensForUser(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, platform, updated_at
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// ClaimDueReminders returns the users whose reminder time has passed today, who have an active
// challenge and no record for today. Each user is claimed at most once per JST date.
func (s *NotificationService) ClaimDueReminders(ctx context.Context, now time.Time) ([]string, error) {
	today := utils.JstYmd(now)
	clock := now.In(utils.JST()).Format("15:04")

	query := `
	INSERT INTO reminder_deliveries (user_id, reminder_date)
	SELECT p.id, $1::date
	FROM profiles p
	JOIN challenges c ON c.user_id = p.id AND c.status = 'active'
	WHERE p.record_time IS NOT NULL
	  AND p.record_time <= $2
	  AND $1::date BETWEEN c.start_date AND c.end_date
	  AND NOT EXISTS (
		SELECT 1 FROM daily_records dr
		WHERE dr.challenge_id = c.id AND dr.record_date = $1::date
	  )
	ON CONFLICT (user_id, reminder_date) DO NOTHING
	RETURNING user_id
	`

	rows, err := s.db.Query(ctx, query, today, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to claim reminders: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(userIDs) > 0 {
		log.Printf("ClaimDueReminders: %d reminders due at %s %s", len(userIDs), today, clock)
	}
	return userIDs, nil
}

// ReminderPush builds the daily reminder for one user.
func ReminderPush(userID string) notification.Push {
	return notification.Push{
		UserID: userID,
		Type:   notification.NotificationDailyReminder,
		Title:  reminderTitle,
		Body:   reminderBody,
		Data:   map[string]any{"type": string(notification.NotificationDailyReminder), "url": "/record"},
	}
}
