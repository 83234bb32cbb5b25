package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"dietChallengeAPI/internal/types/calendar"
	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/profile"
	"dietChallengeAPI/middleware"
	"dietChallengeAPI/services"

	"github.com/gorilla/mux"
)

// ChallengeAPI is implemented by services.ChallengeService.
type ChallengeAPI interface {
	ListHabits(ctx context.Context, clerkID string) ([]*challenge.Habit, error)
	CreateCustomHabit(ctx context.Context, clerkID string, req *challenge.CreateCustomHabitRequest) (*challenge.Habit, error)
	CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error)
	GetActiveChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error)
	SaveDailyRecord(ctx context.Context, clerkID, date string, req *challenge.SaveRecordRequest) (*challenge.SaveRecordResponse, error)
	GetDashboard(ctx context.Context, clerkID string) (*challenge.Dashboard, error)
	GetCalendar(ctx context.Context, clerkID string) (*calendar.CalendarResponse, error)
	FinishChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error)
	GetHistory(ctx context.Context, clerkID string) ([]*challenge.Challenge, error)
}

// ProfileEnsurer creates the caller's profile on first use.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, clerkID string) (*profile.Profile, error)
}

type ChallengeHandler struct {
	challengeService ChallengeAPI
	profiles         ProfileEnsurer
}

func NewChallengeHandler(challengeService ChallengeAPI, profiles ProfileEnsurer) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService, profiles: profiles}
}

func (h *ChallengeHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habits, err := h.challengeService.ListHabits(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "ListHabits", err)
		return
	}
	respondWithJSON(w, http.StatusOK, habits)
}

func (h *ChallengeHandler) CreateCustomHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.CreateCustomHabitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.profiles.EnsureProfile(ctx, clerkID); err != nil {
		respondWithServiceError(w, "CreateCustomHabit", err)
		return
	}

	habit, err := h.challengeService.CreateCustomHabit(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateCustomHabit", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, habit)
}

func (h *ChallengeHandler) FeeSuggestion(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 0 {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'count' must be a non-negative integer")
		return
	}

	suggestion, err := services.SuggestParticipationFee(period, count)
	if err != nil {
		respondWithServiceError(w, "FeeSuggestion", err)
		return
	}
	respondWithJSON(w, http.StatusOK, suggestion)
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.CreateChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.profiles.EnsureProfile(ctx, clerkID); err != nil {
		respondWithServiceError(w, "CreateChallenge", err)
		return
	}

	created, err := h.challengeService.CreateChallenge(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateChallenge", err)
		return
	}

	log.Printf("CreateChallenge Handler: %s started challenge %s", clerkID, created.ID)
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ChallengeHandler) GetActiveChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ch, err := h.challengeService.GetActiveChallenge(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetActiveChallenge", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ch)
}

// SaveDailyRecord handles both /records/{date} and /records/today.
func (h *ChallengeHandler) SaveDailyRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	date := mux.Vars(r)["date"]
	if date == "today" {
		date = ""
	}

	var req challenge.SaveRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.challengeService.SaveDailyRecord(ctx, clerkID, date, &req)
	if err != nil {
		respondWithServiceError(w, "SaveDailyRecord", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ChallengeHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dash, err := h.challengeService.GetDashboard(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetDashboard", err)
		return
	}
	respondWithJSON(w, http.StatusOK, dash)
}

func (h *ChallengeHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	cal, err := h.challengeService.GetCalendar(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetCalendar", err)
		return
	}
	respondWithJSON(w, http.StatusOK, cal)
}

func (h *ChallengeHandler) FinishChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ch, err := h.challengeService.FinishChallenge(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "FinishChallenge", err)
		return
	}
	respondWithJSON(w, http.StatusOK, ch)
}

func (h *ChallengeHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	history, err := h.challengeService.GetHistory(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, "GetHistory", err)
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}
