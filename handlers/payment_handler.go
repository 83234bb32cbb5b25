package handlers

import (
	"context"
	"net/http"
	"time"

	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/payment"
	"dietChallengeAPI/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type PaymentAPI interface {
	CreatePaymentIntent(ctx context.Context, clerkID string, req *payment.CreateIntentRequest) (*payment.CreateIntentResponse, error)
	SavePaymentIntent(ctx context.Context, clerkID, paymentIntentID string) (*challenge.Challenge, error)
	ProcessRefund(ctx context.Context, clerkID, challengeID string) (*payment.RefundResult, error)
}

type PaymentHandler struct {
	paymentService PaymentAPI
}

func NewPaymentHandler(paymentService PaymentAPI) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req payment.CreateIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.paymentService.CreatePaymentIntent(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "CreatePaymentIntent", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) SavePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req payment.SaveIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ch, err := h.paymentService.SavePaymentIntent(ctx, clerkID, req.PaymentIntentID)
	if err != nil {
		respondWithServiceError(w, "SavePaymentIntent", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ch)
}

func (h *PaymentHandler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID := mux.Vars(r)["id"]
	if _, err := uuid.Parse(challengeID); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	result, err := h.paymentService.ProcessRefund(ctx, clerkID, challengeID)
	if err != nil {
		respondWithServiceError(w, "ProcessRefund", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
