package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ChallengeDays is the nominal length of a challenge and the refund denominator.
const ChallengeDays = 30

// CalculateRefund returns the refund owed for a challenge.
//
//   - basic:        floor(fee * recordedDays / 30)
//   - intermediate: floor(fee * dietSuccessDays / 30)
//   - advanced:     fee when all 30 days were recorded without a single failure, otherwise 0
//
// Inputs outside their documented range are returned as errors rather than clamped.
func CalculateRefund(fee int64, plan Plan, recordedDays, dietSuccessDays int, hasAnyFailure bool) (int64, error) {
	if fee < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeFee, fee)
	}
	if recordedDays < 0 || recordedDays > ChallengeDays {
		return 0, fmt.Errorf("%w: recorded days %d", ErrDaysOutOfRange, recordedDays)
	}
	if dietSuccessDays < 0 || dietSuccessDays > recordedDays {
		return 0, fmt.Errorf("%w: diet success days %d with %d recorded", ErrDaysOutOfRange, dietSuccessDays, recordedDays)
	}

	switch plan {
	case PlanBasic:
		return proRata(fee, recordedDays), nil
	case PlanIntermediate:
		return proRata(fee, dietSuccessDays), nil
	case PlanAdvanced:
		if hasAnyFailure || recordedDays < ChallengeDays {
			return 0, nil
		}
		return fee, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
}

// proRata is floor(fee * days / 30). The product is kept in decimal so it cannot overflow int64;
// days <= 30 keeps the result <= fee.
func proRata(fee int64, days int) int64 {
	return decimal.NewFromInt(fee).
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(ChallengeDays)).
		Floor().
		IntPart()
}
