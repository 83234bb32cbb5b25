package scoring

import "errors"

// Configuration errors: the challenge itself is malformed.
var (
	ErrInvalidPlan           = errors.New("invalid plan")
	ErrNegativeFee           = errors.New("participation fee must not be negative")
	ErrInvalidHabitLinkCount = errors.New("habit link count must not be negative")
	ErrInvalidWindow         = errors.New("invalid challenge window")
	ErrInvalidUnlockedPlans  = errors.New("unlocked plans must be a prefix starting with basic")
)

// Input consistency errors: records that should have been rejected before scoring.
var (
	ErrDaysOutOfRange      = errors.New("day count out of range")
	ErrOutcomeOverflow     = errors.New("outcome count exceeds habit link count")
	ErrDuplicateRecordDate = errors.New("duplicate daily record date")
	ErrDuplicateOutcome    = errors.New("duplicate outcome for habit link")
	ErrRecordOutsideWindow = errors.New("daily record outside challenge window")
)
