package handlers

import (
	"context"
	"net/http"
	"time"

	"dietChallengeAPI/internal/notification"
	"dietChallengeAPI/middleware"
)

type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, clerkID string, req notification.RegisterDeviceRequest) error
}

type NotificationHandler struct {
	notificationService DeviceRegistrar
}

func NewNotificationHandler(notificationService DeviceRegistrar) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req notification.RegisterDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notificationService.RegisterDevice(ctx, clerkID, req); err != nil {
		respondWithServiceError(w, "RegisterDevice", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
