package services

import (
	"fmt"

	"dietChallengeAPI/internal/types/challenge"

	"github.com/shopspring/decimal"
)

const snackUnitPrice = 100

var periodsPerMonth = map[string]int64{
	"day":   30,
	"week":  4,
	"month": 1,
}

// SuggestParticipationFee turns the user's snack habit into a monthly spend,
// rounded to the nearest 100 yen.
func SuggestParticipationFee(period string, count int) (*challenge.FeeSuggestion, error) {
	multiplier, ok := periodsPerMonth[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeePeriod, period)
	}
	if count < 0 {
		return nil, fmt.Errorf("snack count must not be negative: %d", count)
	}

	monthly := decimal.NewFromInt(int64(count)).
		Mul(decimal.NewFromInt(snackUnitPrice)).
		Mul(decimal.NewFromInt(multiplier))
	rounded := monthly.Div(decimal.NewFromInt(100)).Round(0).Mul(decimal.NewFromInt(100))

	return &challenge.FeeSuggestion{
		Period:       period,
		Count:        count,
		MonthlySpend: monthly.IntPart(),
		SuggestedFee: rounded.IntPart(),
	}, nil
}
