package handlers

import (
	"context"
	"net/http"
	"time"

	"dietChallengeAPI/internal/types/profile"
	"dietChallengeAPI/middleware"
)

type ProfileAPI interface {
	ProfileEnsurer
	UpdateSettings(ctx context.Context, clerkID string, req *profile.UpdateSettingsRequest) (*profile.Profile, error)
	GetPlans(ctx context.Context, clerkID string) (*profile.PlansResponse, error)
	AckUnlockNotification(ctx context.Context, clerkID string) (*profile.PlansResponse, error)
}

type ProfileHandler struct {
	profileService ProfileAPI
}

func NewProfileHandler(profileService ProfileAPI) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.profileService.EnsureProfile(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetProfile", err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req profile.UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.profileService.UpdateSettings(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "UpdateSettings", err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) GetPlans(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	plans, err := h.profileService.GetPlans(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetPlans", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plans)
}

func (h *ProfileHandler) AckUnlockNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	plans, err := h.profileService.AckUnlockNotification(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "AckUnlockNotification", err)
		return
	}
	respondWithJSON(w, http.StatusOK, plans)
}
