package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"dietChallengeAPI/internal/types/contact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContactAPI struct {
	CreateMessageFn func(ctx context.Context, clerkID string, req *contact.CreateMessageRequest) (*contact.Message, error)
}

func (f *fakeContactAPI) CreateMessage(ctx context.Context, clerkID string, req *contact.CreateMessageRequest) (*contact.Message, error) {
	return f.CreateMessageFn(ctx, clerkID, req)
}

func TestCreateContactMessage(t *testing.T) {
	h := NewContactHandler(&fakeContactAPI{
		CreateMessageFn: func(ctx context.Context, clerkID string, req *contact.CreateMessageRequest) (*contact.Message, error) {
			assert.Equal(t, "user_1", clerkID)
			assert.Equal(t, "返金について", req.Subject)
			return &contact.Message{ID: "m1", Subject: req.Subject, Message: req.Message, Status: "open"}, nil
		},
	})

	rr := serve(http.MethodPost, "/contact", "/contact", "user_1", `{"subject":"返金について","message":"いつ届きますか"}`, h.CreateMessage)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var got contact.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "open", got.Status)
}

func TestCreateContactMessageRequiresAuth(t *testing.T) {
	h := NewContactHandler(&fakeContactAPI{})

	rr := serve(http.MethodPost, "/contact", "/contact", "", `{"subject":"a","message":"b"}`, h.CreateMessage)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateContactMessageValidation(t *testing.T) {
	h := NewContactHandler(&fakeContactAPI{})

	for name, body := range map[string]string{
		"missing subject":  `{"message":"b"}`,
		"missing message":  `{"subject":"a"}`,
		"subject too long": `{"subject":"` + strings.Repeat("a", 201) + `","message":"b"}`,
		"unknown field":    `{"subject":"a","message":"b","status":"closed"}`,
		"empty body":       ``,
	} {
		t.Run(name, func(t *testing.T) {
			rr := serve(http.MethodPost, "/contact", "/contact", "user_1", body, h.CreateMessage)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestCreateContactMessageServiceError(t *testing.T) {
	h := NewContactHandler(&fakeContactAPI{
		CreateMessageFn: func(ctx context.Context, clerkID string, req *contact.CreateMessageRequest) (*contact.Message, error) {
			return nil, errors.New("insert failed")
		},
	})

	rr := serve(http.MethodPost, "/contact", "/contact", "user_1", `{"subject":"a","message":"b"}`, h.CreateMessage)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
