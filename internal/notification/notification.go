package notification

import (
	"context"
	"time"
)

type NotificationType string

const (
	NotificationDailyReminder NotificationType = "daily_reminder"
	NotificationPlanUnlocked  NotificationType = "plan_unlocked"
	NotificationGameOver      NotificationType = "game_over"
	NotificationChallengeDone NotificationType = "challenge_completed"
)

type DeviceToken struct {
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

// Push is one message addressed to a single user's devices.
type Push struct {
	UserID string
	Type   NotificationType
	Title  string
	Body   string
	Data   map[string]any
}

// PushProvider delivers a message to a set of device tokens.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []DeviceToken, title, body string, data map[string]any) error
}
