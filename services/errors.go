package services

import "errors"

var (
	ErrProfileNotFound        = errors.New("profile not found")
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrNoActiveChallenge      = errors.New("no active challenge")
	ErrPlanLocked             = errors.New("refund plan is not unlocked")
	ErrRecordDateOutOfRange   = errors.New("record date is outside the challenge window")
	ErrUnknownHabit           = errors.New("unknown diet method")
	ErrInvalidHabitName       = errors.New("invalid custom habit name")
	ErrUnknownHabitLink       = errors.New("outcome refers to a habit not linked to the challenge")
	ErrDuplicateHabitOutcome  = errors.New("habit recorded twice for the same day")
	ErrInvalidFeePeriod       = errors.New("snack frequency period must be day, week or month")
	ErrChallengeNotCompleted  = errors.New("challenge is not completed")
	ErrRefundAlreadyProcessed = errors.New("refund already processed")
	ErrMissingPaymentIntent   = errors.New("challenge has no payment intent")
	ErrPaymentIntentConflict  = errors.New("challenge already has a different payment intent")
	ErrPaymentIntentMismatch  = errors.New("payment intent does not match the challenge")
)
