package services

import (
	"context"
	"fmt"
	"strings"

	"dietChallengeAPI/internal/types/contact"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactService struct {
	db *pgxpool.Pool
}

func NewContactService(db *pgxpool.Pool) *ContactService {
	return &ContactService{db: db}
}

func (s *ContactService) CreateMessage(ctx context.Context, clerkID string, req *contact.CreateMessageRequest) (*contact.Message, error) {
	userID, err := profileIDByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	m := &contact.Message{}
	err = s.db.QueryRow(ctx, `
		INSERT INTO contact_messages (user_id, subject, message)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, subject, message, status, created_at
	`, userID, strings.TrimSpace(req.Subject), strings.TrimSpace(req.Message)).
		Scan(&m.ID, &m.UserID, &m.Subject, &m.Message, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save contact message: %w", err)
	}
	return m, nil
}
