package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"dietChallengeAPI/internal/scoring"
	"dietChallengeAPI/services"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// respondWithServiceError maps domain errors to status codes. Anything unknown is a 500.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		respondWithError(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, services.ErrChallengeNotFound):
		respondWithError(w, http.StatusNotFound, "Challenge not found")
	case errors.Is(err, services.ErrNoActiveChallenge):
		respondWithError(w, http.StatusNotFound, "No active challenge")
	case errors.Is(err, services.ErrPlanLocked):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrRecordDateOutOfRange),
		errors.Is(err, services.ErrUnknownHabit),
		errors.Is(err, services.ErrInvalidHabitName),
		errors.Is(err, services.ErrPaymentIntentMismatch),
		errors.Is(err, services.ErrUnknownHabitLink),
		errors.Is(err, services.ErrDuplicateHabitOutcome),
		errors.Is(err, services.ErrInvalidFeePeriod):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrRefundAlreadyProcessed),
		errors.Is(err, services.ErrChallengeNotCompleted),
		errors.Is(err, services.ErrMissingPaymentIntent),
		errors.Is(err, services.ErrPaymentIntentConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case isIntegrityError(err):
		log.Printf("%s: data integrity error: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Challenge data is inconsistent")
	default:
		log.Printf("%s: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func isIntegrityError(err error) bool {
	for _, target := range []error{
		scoring.ErrInvalidPlan,
		scoring.ErrNegativeFee,
		scoring.ErrInvalidHabitLinkCount,
		scoring.ErrInvalidWindow,
		scoring.ErrInvalidUnlockedPlans,
		scoring.ErrDaysOutOfRange,
		scoring.ErrOutcomeOverflow,
		scoring.ErrDuplicateRecordDate,
		scoring.ErrDuplicateOutcome,
		scoring.ErrRecordOutsideWindow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
