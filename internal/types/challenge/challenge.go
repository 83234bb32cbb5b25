package challenge

import (
	"time"

	"dietChallengeAPI/internal/scoring"
)

type Challenge struct {
	ID                string                   `json:"id"`
	UserID            string                   `json:"userId"`
	StartDate         string                   `json:"startDate"`
	EndDate           string                   `json:"endDate"`
	ParticipationFee  int64                    `json:"participationFee"`
	RefundPlan        scoring.Plan             `json:"refundPlan"`
	Status            scoring.Status           `json:"status"`
	InitialWeight     *float64                 `json:"initialWeight,omitempty"`
	CurrentWeight     *float64                 `json:"currentWeight,omitempty"`
	TargetWeight      *float64                 `json:"targetWeight,omitempty"`
	RefundAmount      int64                    `json:"refundAmount"`
	CompletionReason  scoring.CompletionReason `json:"completionReason,omitempty"`
	CompletedAt       *time.Time               `json:"completedAt,omitempty"`
	IsRefundProcessed bool                     `json:"isRefundProcessed"`
	PaymentIntentID   *string                  `json:"paymentIntentId,omitempty"`
	RefundID          *string                  `json:"refundId,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

// ScoringConfig projects the stored challenge onto the engine's input.
func (c *Challenge) ScoringConfig(habitLinkCount int) scoring.Config {
	return scoring.Config{
		Fee:            c.ParticipationFee,
		Plan:           c.RefundPlan,
		StartDate:      c.StartDate,
		EndDate:        c.EndDate,
		HabitLinkCount: habitLinkCount,
		Status:         c.Status,
	}
}

// Habit is either a shared default diet method or a user's custom one.
type Habit struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	QuestionText string `json:"questionText"`
	IsCustom     bool   `json:"isCustom"`
}

// HabitLink binds a habit to a challenge. Exactly one of the two ids is set.
type HabitLink struct {
	ID                 string  `json:"id"`
	ChallengeID        string  `json:"challengeId"`
	DietMethodID       *string `json:"dietMethodId,omitempty"`
	CustomDietMethodID *string `json:"customDietMethodId,omitempty"`
	Name               string  `json:"name"`
	QuestionText       string  `json:"questionText"`
}

type HabitOutcome struct {
	HabitLinkID  string `json:"habitLinkId" validate:"required,uuid"`
	IsSuccessful bool   `json:"isSuccessful"`
	// Countermeasure is the user's plan for tomorrow after a failed habit.
	Countermeasure string `json:"countermeasure,omitempty" validate:"max=500"`
}

type DailyRecord struct {
	ID          string         `json:"id"`
	ChallengeID string         `json:"challengeId"`
	RecordDate  string         `json:"recordDate"`
	Weight      *float64       `json:"weight,omitempty"`
	MoodComment string         `json:"moodComment,omitempty"`
	IsCompleted bool           `json:"isCompleted"`
	Outcomes    []HabitOutcome `json:"outcomes"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type CreateChallengeRequest struct {
	CurrentWeight        float64            `json:"currentWeight" validate:"required,gt=0"`
	TargetWeight         float64            `json:"targetWeight" validate:"required,gt=0"`
	DietMethodIDs        []string           `json:"dietMethodIds" validate:"dive,uuid"`
	CustomHabits         []CustomHabitInput `json:"customHabits" validate:"max=5,dive"`
	SnackFrequencyPeriod string             `json:"snackFrequencyPeriod" validate:"omitempty,oneof=day week month"`
	SnackFrequencyCount  int                `json:"snackFrequencyCount" validate:"gte=0"`
	ParticipationFee     int64              `json:"participationFee" validate:"gte=0,lte=1000000"`
	RefundPlan           scoring.Plan       `json:"refundPlan" validate:"required,oneof=basic intermediate advanced"`
	RecordTime           string             `json:"recordTime" validate:"omitempty,datetime=15:04"`
	PaymentIntentID      string             `json:"paymentIntentId,omitempty"`
}

type CreateCustomHabitRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type CustomHabitInput struct {
	Name     string `json:"name" validate:"max=100"`
	Selected bool   `json:"selected"`
}

type SaveRecordRequest struct {
	Weight      float64        `json:"weight" validate:"required,gt=0"`
	MoodComment string         `json:"moodComment" validate:"max=2000"`
	Outcomes    []HabitOutcome `json:"outcomes" validate:"dive"`
}

type SaveRecordResponse struct {
	Record       *DailyRecord   `json:"record"`
	Result       scoring.Result `json:"result"`
	Message      string         `json:"message"`
	GameOver     bool           `json:"gameOver"`
	UnlockedPlan scoring.Plan   `json:"unlockedPlan,omitempty"`
}

// Dashboard is the money-monster view of the active challenge.
type Dashboard struct {
	Challenge       *Challenge     `json:"challenge"`
	HabitLinks      []*HabitLink   `json:"habitLinks"`
	Result          scoring.Result `json:"result"`
	MaxHealth       int64          `json:"maxHealth"`
	RecoveredAmount int64          `json:"recoveredAmount"`
	RemainingAmount int64          `json:"remainingAmount"`
	RecordedToday   bool           `json:"recordedToday"`
	DaysElapsed     int            `json:"daysElapsed"`
	UnlockedPlan    scoring.Plan   `json:"unlockedPlan,omitempty"`
}

type FeeSuggestion struct {
	Period       string `json:"period"`
	Count        int    `json:"count"`
	MonthlySpend int64  `json:"monthlySpend"`
	SuggestedFee int64  `json:"suggestedFee"`
}

// CompletionOutcome describes what happened when a challenge left the active state.
type CompletionOutcome struct {
	ChallengeID  string
	UserID       string
	Plan         scoring.Plan
	Result       scoring.Result
	UnlockedPlan scoring.Plan
}
