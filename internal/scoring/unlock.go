package scoring

import "fmt"

// UnlockResult is the outcome of running the unlock transition for one completed challenge.
type UnlockResult struct {
	Plans   []Plan
	Granted Plan
}

// HasGrant reports whether a new tier was granted by this transition.
func (r UnlockResult) HasGrant() bool {
	return r.Granted != ""
}

// ValidateUnlocked checks that plans is a non-empty prefix of basic < intermediate < advanced.
func ValidateUnlocked(plans []Plan) error {
	if len(plans) == 0 || len(plans) > len(planOrder) {
		return fmt.Errorf("%w: %v", ErrInvalidUnlockedPlans, plans)
	}
	for i, p := range plans {
		if p != planOrder[i] {
			return fmt.Errorf("%w: %v", ErrInvalidUnlockedPlans, plans)
		}
	}
	return nil
}

// Unlock grants the successor of the completed plan once every day was recorded.
// Calling it again for the same completion is a no-op with no grant.
func Unlock(unlocked []Plan, completed Plan, recordedDays int) (UnlockResult, error) {
	if err := ValidateUnlocked(unlocked); err != nil {
		return UnlockResult{}, err
	}
	if !completed.Valid() {
		return UnlockResult{}, fmt.Errorf("%w: %q", ErrInvalidPlan, completed)
	}
	if completed.rank() >= len(unlocked) {
		return UnlockResult{}, fmt.Errorf("%w: completed %s while only %v unlocked", ErrInvalidUnlockedPlans, completed, unlocked)
	}

	plans := append([]Plan(nil), unlocked...)
	result := UnlockResult{Plans: plans}

	if recordedDays < ChallengeDays {
		return result, nil
	}
	next, ok := completed.Next()
	if !ok || next.rank() < len(plans) {
		return result, nil
	}

	result.Plans = append(plans, next)
	result.Granted = next
	return result, nil
}

// IsUnlocked reports whether p may be selected for the next challenge.
func IsUnlocked(unlocked []Plan, p Plan) bool {
	for _, u := range unlocked {
		if u == p {
			return true
		}
	}
	return false
}
