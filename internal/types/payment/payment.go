package payment

type CreateIntentRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0,lte=1000000"`
	Description string `json:"description" validate:"max=200"`
}

type CreateIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type SaveIntentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required,startswith=pi_"`
}

// RefundResult is the settlement state of one challenge after a refund attempt.
type RefundResult struct {
	ChallengeID       string `json:"challengeId"`
	RefundAmount      int64  `json:"refundAmount"`
	RefundID          string `json:"refundId,omitempty"`
	IsRefundProcessed bool   `json:"isRefundProcessed"`
	// Skipped is true when the amount was zero and no refund was issued.
	Skipped bool `json:"skipped"`
}
