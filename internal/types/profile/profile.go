package profile

import (
	"time"

	"dietChallengeAPI/internal/scoring"
)

type Profile struct {
	ID                        string         `json:"id"`
	ClerkID                   string         `json:"clerkId"`
	Email                     string         `json:"email"`
	CurrentWeight             *float64       `json:"currentWeight,omitempty"`
	TargetWeight              *float64       `json:"targetWeight,omitempty"`
	SnackFrequencyPeriod      *string        `json:"snackFrequencyPeriod,omitempty"`
	SnackFrequencyCount       *int           `json:"snackFrequencyCount,omitempty"`
	RecordTime                *string        `json:"recordTime,omitempty"`
	UnlockedPlans             []scoring.Plan `json:"unlockedPlans"`
	PendingUnlockNotification *scoring.Plan  `json:"pendingUnlockNotification,omitempty"`
	CreatedAt                 time.Time      `json:"createdAt"`
	UpdatedAt                 time.Time      `json:"updatedAt"`
}

type CreateProfileRequest struct {
	ClerkID string `json:"clerkId" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type UpdateSettingsRequest struct {
	CurrentWeight        *float64 `json:"currentWeight,omitempty" validate:"omitempty,gt=0"`
	TargetWeight         *float64 `json:"targetWeight,omitempty" validate:"omitempty,gt=0"`
	SnackFrequencyPeriod *string  `json:"snackFrequencyPeriod,omitempty" validate:"omitempty,oneof=day week month"`
	SnackFrequencyCount  *int     `json:"snackFrequencyCount,omitempty" validate:"omitempty,gte=0"`
	RecordTime           *string  `json:"recordTime,omitempty" validate:"omitempty,datetime=15:04"`
}

type PlansResponse struct {
	UnlockedPlans             []scoring.Plan `json:"unlockedPlans"`
	PendingUnlockNotification *scoring.Plan  `json:"pendingUnlockNotification,omitempty"`
}
