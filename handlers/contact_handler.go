package handlers

import (
	"context"
	"net/http"
	"time"

	"dietChallengeAPI/internal/types/contact"
	"dietChallengeAPI/middleware"
)

type ContactAPI interface {
	CreateMessage(ctx context.Context, clerkID string, req *contact.CreateMessageRequest) (*contact.Message, error)
}

type ContactHandler struct {
	contactService ContactAPI
}

func NewContactHandler(contactService ContactAPI) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

func (h *ContactHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req contact.CreateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.contactService.CreateMessage(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateMessage", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, msg)
}
