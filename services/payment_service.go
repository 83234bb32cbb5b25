package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dietChallengeAPI/internal/scoring"
	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/payment"
	"dietChallengeAPI/middleware"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
)

// PaymentGateway is the subset of Stripe the service needs.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amount int64, idempotencyKey string, metadata map[string]string) (*stripe.Refund, error)
}

type stripeGateway struct{}

// NewStripeGateway talks to the Stripe API with the global stripe.Key.
func NewStripeGateway(secretKey string) PaymentGateway {
	stripe.Key = secretKey
	return stripeGateway{}
}

func (stripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return paymentintent.New(params)
}

func (stripeGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(paymentIntentID, params)
}

func (stripeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, idempotencyKey string, metadata map[string]string) (*stripe.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return refund.New(params)
}

type PaymentService struct {
	db       *pgxpool.Pool
	gateway  PaymentGateway
	currency string
}

func NewPaymentService(db *pgxpool.Pool, gateway PaymentGateway, currency string) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, currency: currency}
}

// CreatePaymentIntent starts the participation fee payment for the caller.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, clerkID string, req *payment.CreateIntentRequest) (*payment.CreateIntentResponse, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "ダイエットチャレンジ参加費"
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, req.Amount, s.currency, description, map[string]string{
		"user_id":  userID,
		"clerk_id": clerkID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	log.Printf("CreatePaymentIntent: %s for user %s (%d %s)", pi.ID, userID, req.Amount, s.currency)
	return &payment.CreateIntentResponse{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
}

// VerifyPaymentIntent checks with Stripe that the intent was created for userID and charges
// exactly fee in the service currency.
func (s *PaymentService) VerifyPaymentIntent(ctx context.Context, userID, paymentIntentID string, fee int64) error {
	pi, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment intent %s: %w", paymentIntentID, err)
	}
	if pi.Metadata["user_id"] != userID {
		return fmt.Errorf("%w: %s belongs to another user", ErrPaymentIntentMismatch, paymentIntentID)
	}
	if pi.Amount != fee {
		return fmt.Errorf("%w: %s charges %d, fee is %d", ErrPaymentIntentMismatch, paymentIntentID, pi.Amount, fee)
	}
	if !strings.EqualFold(string(pi.Currency), s.currency) {
		return fmt.Errorf("%w: %s is in %s", ErrPaymentIntentMismatch, paymentIntentID, pi.Currency)
	}
	return nil
}

// SavePaymentIntent attaches a paid intent to the caller's active challenge.
func (s *PaymentService) SavePaymentIntent(ctx context.Context, clerkID, paymentIntentID string) (*challenge.Challenge, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return s.AttachPaymentIntent(ctx, userID, paymentIntentID)
}

// AttachPaymentIntent stores the intent on the user's active challenge after verifying it
// against the challenge fee. Re-attaching the same intent is a no-op; replacing a different
// one is rejected.
func (s *PaymentService) AttachPaymentIntent(ctx context.Context, userID, paymentIntentID string) (*challenge.Challenge, error) {
	var updated *challenge.Challenge

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		ch, err := activeChallenge(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		if ch.PaymentIntentID != nil && *ch.PaymentIntentID != "" {
			if *ch.PaymentIntentID != paymentIntentID {
				return fmt.Errorf("%w: %s", ErrPaymentIntentConflict, ch.ID)
			}
			updated = ch
			return nil
		}
		if err := s.VerifyPaymentIntent(ctx, userID, paymentIntentID, ch.ParticipationFee); err != nil {
			return err
		}

		updated, err = scanChallenge(tx.QueryRow(ctx, `
			UPDATE challenges SET payment_intent_id = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+challengeColumns, ch.ID, paymentIntentID))
		if err != nil {
			return fmt.Errorf("failed to save payment intent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ProcessRefund settles the caller's own completed challenge.
func (s *PaymentService) ProcessRefund(ctx context.Context, clerkID, challengeID string) (*payment.RefundResult, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, challengeID, userID)
}

// SettleChallenge settles any completed challenge. Used by the sweep worker and the ops CLI.
func (s *PaymentService) SettleChallenge(ctx context.Context, challengeID string) (*payment.RefundResult, error) {
	return s.settle(ctx, challengeID, "")
}

// settle issues at most one refund per challenge. The row lock and the processed flag stop
// concurrent or repeated settlement; the idempotency key covers a crash between the Stripe
// call and the commit.
func (s *PaymentService) settle(ctx context.Context, challengeID, ownerID string) (*payment.RefundResult, error) {
	var result *payment.RefundResult

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		ch, err := challengeByID(ctx, tx, challengeID, true)
		if err != nil {
			return err
		}
		if ownerID != "" && ch.UserID != ownerID {
			return ErrChallengeNotFound
		}
		if ch.Status != scoring.StatusCompleted {
			return fmt.Errorf("%w: %s is %s", ErrChallengeNotCompleted, ch.ID, ch.Status)
		}
		if ch.IsRefundProcessed {
			return fmt.Errorf("%w: %s", ErrRefundAlreadyProcessed, ch.ID)
		}

		result = &payment.RefundResult{ChallengeID: ch.ID, RefundAmount: ch.RefundAmount}

		if ch.RefundAmount <= 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE challenges SET is_refund_processed = TRUE, updated_at = NOW() WHERE id = $1
			`, ch.ID); err != nil {
				return fmt.Errorf("failed to mark refund processed: %w", err)
			}
			result.IsRefundProcessed = true
			result.Skipped = true
			return nil
		}

		if ch.PaymentIntentID == nil || *ch.PaymentIntentID == "" {
			return fmt.Errorf("%w: %s", ErrMissingPaymentIntent, ch.ID)
		}

		re, err := s.gateway.CreateRefund(ctx, *ch.PaymentIntentID, ch.RefundAmount, "refund-"+ch.ID, map[string]string{
			"challenge_id": ch.ID,
			"user_id":      ch.UserID,
		})
		if err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE challenges SET is_refund_processed = TRUE, refund_id = $2, updated_at = NOW() WHERE id = $1
		`, ch.ID, re.ID); err != nil {
			return fmt.Errorf("failed to save refund: %w", err)
		}
		result.RefundID = re.ID
		result.IsRefundProcessed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRefundAlreadyProcessed) && !errors.Is(err, ErrChallengeNotCompleted) && !errors.Is(err, ErrChallengeNotFound) {
			middleware.ObserveRefund("failed", 0)
		}
		return nil, err
	}

	if result.Skipped {
		middleware.ObserveRefund("skipped", 0)
		log.Printf("SettleChallenge: %s has nothing to refund", challengeID)
	} else {
		middleware.ObserveRefund("refunded", result.RefundAmount)
		log.Printf("SettleChallenge: refunded %d for %s (%s)", result.RefundAmount, challengeID, result.RefundID)
	}
	return result, nil
}

// PendingSettlements lists completed challenges whose refund has not been processed yet.
// Challenges without a payment intent and a positive amount are left for manual follow-up.
func (s *PaymentService) PendingSettlements(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id
		FROM challenges
		WHERE status = 'completed'
		  AND NOT is_refund_processed
		  AND (refund_amount <= 0 OR payment_intent_id IS NOT NULL)
		ORDER BY completed_at
		LIMIT 100
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending settlements: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read pending settlements: %w", err)
	}
	return ids, nil
}
