package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/clerk"
	"dietChallengeAPI/internal/types/profile"
	"dietChallengeAPI/services"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const webhookTolerance = 5 * time.Minute

type ProfileWebhookAPI interface {
	CreateProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error)
	DeleteProfileByClerkID(ctx context.Context, clerkID string) error
}

type PaymentAttacher interface {
	AttachPaymentIntent(ctx context.Context, userID, paymentIntentID string) (*challenge.Challenge, error)
}

type WebhookHandler struct {
	profileService      ProfileWebhookAPI
	paymentService      PaymentAttacher
	clerkWebhookSecret  string
	stripeWebhookSecret string
	now                 func() time.Time
}

func NewWebhookHandler(profileService ProfileWebhookAPI, paymentService PaymentAttacher, clerkSecret, stripeSecret string) *WebhookHandler {
	return &WebhookHandler{
		profileService:      profileService,
		paymentService:      paymentService,
		clerkWebhookSecret:  clerkSecret,
		stripeWebhookSecret: stripeSecret,
		now:                 time.Now,
	}
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if !h.verifyClerkSignature(r.Header, body) {
		log.Println("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		if err := h.handleUserUpserted(ctx, event.Data); err != nil {
			log.Printf("Error handling %s: %v", event.Type, err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	case "user.deleted":
		if err := h.handleUserDeleted(ctx, event.Data); err != nil {
			log.Printf("Error handling user.deleted: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserUpserted(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == "" {
		return fmt.Errorf("user data has no id")
	}

	p, err := h.profileService.CreateProfile(ctx, &profile.CreateProfileRequest{
		ClerkID: userData.ID,
		Email:   userData.PrimaryEmail(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	log.Printf("Successfully synced profile %s (Clerk ID: %s)", p.ID, p.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.profileService.DeleteProfileByClerkID(ctx, userData.ID)
	if errors.Is(err, services.ErrProfileNotFound) {
		log.Printf("user.deleted for unknown Clerk ID %s", userData.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	log.Printf("Successfully deleted profile: Clerk ID: %s", userData.ID)
	return nil
}

// verifyClerkSignature checks the Svix headers Clerk signs its webhooks with.
func (h *WebhookHandler) verifyClerkSignature(header http.Header, body []byte) bool {
	if h.clerkWebhookSecret == "" {
		log.Println("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return true
	}

	svixID := header.Get("svix-id")
	svixTimestamp := header.Get("svix-timestamp")
	svixSignature := header.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		log.Println("Missing webhook signature headers")
		return false
	}

	ts, err := strconv.ParseInt(svixTimestamp, 10, 64)
	if err != nil {
		return false
	}
	if age := h.now().Sub(time.Unix(ts, 0)); age > webhookTolerance || age < -webhookTolerance {
		log.Printf("Webhook timestamp outside tolerance: %s", svixTimestamp)
		return false
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h.clerkWebhookSecret, "whsec_"))
	if err != nil {
		log.Printf("CLERK_WEBHOOK_SECRET is not valid base64: %v", err)
		return false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(svixID + "." + svixTimestamp + "." + string(body)))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// The header carries space separated "v1,<sig>" entries during secret rotation.
	for _, candidate := range strings.Fields(svixSignature) {
		version, sig, ok := strings.Cut(candidate, ",")
		if ok && version == "v1" && hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

// HandleStripeWebhook processes events sent by Stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading request body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if h.stripeWebhookSecret == "" {
		log.Println("STRIPE_WEBHOOK_SECRET is not set")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.stripeWebhookSecret)
	if err != nil {
		log.Printf("Error verifying webhook signature: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.handlePaymentSucceeded(ctx, &pi); err != nil {
			log.Printf("Error handling payment_intent.succeeded: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		intentID := ""
		if charge.PaymentIntent != nil {
			intentID = charge.PaymentIntent.ID
		}
		log.Printf("Stripe: charge %s refunded %d %s (payment intent %s)", charge.ID, charge.AmountRefunded, charge.Currency, intentID)

	default:
		log.Printf("Unhandled Stripe event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

// handlePaymentSucceeded attaches a paid intent to the payer's active challenge. Payments made
// before the challenge exists are attached during onboarding instead.
func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, pi *stripe.PaymentIntent) error {
	userID := pi.Metadata["user_id"]
	if userID == "" {
		log.Printf("Stripe: payment intent %s has no user_id metadata", pi.ID)
		return nil
	}

	_, err := h.paymentService.AttachPaymentIntent(ctx, userID, pi.ID)
	switch {
	case errors.Is(err, services.ErrNoActiveChallenge):
		log.Printf("Stripe: payment intent %s paid before challenge creation for user %s", pi.ID, userID)
		return nil
	case errors.Is(err, services.ErrPaymentIntentConflict):
		log.Printf("Stripe: payment intent %s conflicts with the active challenge of user %s", pi.ID, userID)
		return nil
	case errors.Is(err, services.ErrPaymentIntentMismatch):
		log.Printf("Stripe: payment intent %s does not match the active challenge of user %s: %v", pi.ID, userID, err)
		return nil
	case err != nil:
		return err
	}

	log.Printf("Stripe: payment intent %s attached for user %s", pi.ID, userID)
	return nil
}
