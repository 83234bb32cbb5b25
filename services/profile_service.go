package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"dietChallengeAPI/internal/types/profile"

	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClerkDirectory looks up account details that are not part of the session token.
type ClerkDirectory interface {
	PrimaryEmail(ctx context.Context, clerkID string) (string, error)
}

type clerkUsers struct{}

// NewClerkDirectory uses the Clerk Backend API; clerk.SetKey must have been called.
func NewClerkDirectory() ClerkDirectory {
	return clerkUsers{}
}

func (clerkUsers) PrimaryEmail(ctx context.Context, clerkID string) (string, error) {
	u, err := user.Get(ctx, clerkID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch clerk user: %w", err)
	}
	for _, e := range u.EmailAddresses {
		if e != nil && u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			return e.EmailAddress, nil
		}
	}
	if len(u.EmailAddresses) > 0 && u.EmailAddresses[0] != nil {
		return u.EmailAddresses[0].EmailAddress, nil
	}
	return "", nil
}

type ProfileService struct {
	db        *pgxpool.Pool
	directory ClerkDirectory
}

func NewProfileService(db *pgxpool.Pool, directory ClerkDirectory) *ProfileService {
	return &ProfileService{db: db, directory: directory}
}

const profileColumns = `
	id, clerk_id, email, current_weight, target_weight,
	snack_frequency_period, snack_frequency_count, record_time,
	unlocked_plans, pending_unlock_notification, created_at, updated_at`

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	p := &profile.Profile{}
	var unlocked []string
	var pending *string
	err := row.Scan(
		&p.ID, &p.ClerkID, &p.Email, &p.CurrentWeight, &p.TargetWeight,
		&p.SnackFrequencyPeriod, &p.SnackFrequencyCount, &p.RecordTime,
		&unlocked, &pending, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.UnlockedPlans = toPlans(unlocked)
	p.PendingUnlockNotification = planPtr(pending)
	return p, nil
}

// CreateProfile inserts a profile, or refreshes the email when the Clerk user already has one.
func (s *ProfileService) CreateProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	query := `
	INSERT INTO profiles (id, clerk_id, email)
	VALUES ($1, $2, $3)
	ON CONFLICT (clerk_id) DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, uuid.New().String(), req.ClerkID, req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

func (s *ProfileService) GetProfileByClerkID(ctx context.Context, clerkID string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE clerk_id = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// EnsureProfile returns the caller's profile, creating it when the Clerk webhook has not arrived yet.
func (s *ProfileService) EnsureProfile(ctx context.Context, clerkID string) (*profile.Profile, error) {
	p, err := s.GetProfileByClerkID(ctx, clerkID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	email := ""
	if s.directory != nil {
		email, err = s.directory.PrimaryEmail(ctx, clerkID)
		if err != nil {
			log.Printf("EnsureProfile: could not fetch email for %s: %v", clerkID, err)
			email = ""
		}
	}

	log.Printf("EnsureProfile: creating profile for %s", clerkID)
	return s.CreateProfile(ctx, &profile.CreateProfileRequest{ClerkID: clerkID, Email: email})
}

func (s *ProfileService) UpdateSettings(ctx context.Context, clerkID string, req *profile.UpdateSettingsRequest) (*profile.Profile, error) {
	query := `
	UPDATE profiles SET
		current_weight = COALESCE($2, current_weight),
		target_weight = COALESCE($3, target_weight),
		snack_frequency_period = COALESCE($4, snack_frequency_period),
		snack_frequency_count = COALESCE($5, snack_frequency_count),
		record_time = COALESCE($6, record_time),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID,
		req.CurrentWeight, req.TargetWeight, req.SnackFrequencyPeriod, req.SnackFrequencyCount, req.RecordTime))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return p, nil
}

func (s *ProfileService) GetPlans(ctx context.Context, clerkID string) (*profile.PlansResponse, error) {
	p, err := s.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return &profile.PlansResponse{
		UnlockedPlans:             p.UnlockedPlans,
		PendingUnlockNotification: p.PendingUnlockNotification,
	}, nil
}

// AckUnlockNotification clears the one-shot unlock flag and returns the plan it announced, if any.
func (s *ProfileService) AckUnlockNotification(ctx context.Context, clerkID string) (*profile.PlansResponse, error) {
	query := `
	WITH old AS (
		SELECT id, pending_unlock_notification
		FROM profiles
		WHERE clerk_id = $1
		FOR UPDATE
	)
	UPDATE profiles p
	SET pending_unlock_notification = NULL, updated_at = NOW()
	FROM old
	WHERE p.id = old.id
	RETURNING p.unlocked_plans, old.pending_unlock_notification
	`

	var unlocked []string
	var pending *string
	if err := s.db.QueryRow(ctx, query, clerkID).Scan(&unlocked, &pending); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to acknowledge unlock notification: %w", err)
	}

	return &profile.PlansResponse{
		UnlockedPlans:             toPlans(unlocked),
		PendingUnlockNotification: planPtr(pending),
	}, nil
}

func (s *ProfileService) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
