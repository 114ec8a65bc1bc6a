package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/handler"
	"github.com/rentora/rentora-api/internal/service"
)

type mockConversationService struct {
	lastCreate dto.ConversationCreateRequest
	lastDelete string
	response   dto.ConversationResponse
	err        error
}

func (m *mockConversationService) List(_ context.Context, _ string) ([]dto.ConversationResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.ConversationResponse{m.response}, nil
}

func (m *mockConversationService) Get(_ context.Context, _ string) (dto.ConversationResponse, error) {
	if m.err != nil {
		return dto.ConversationResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockConversationService) GetOrCreate(_ context.Context, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error) {
	m.lastCreate = payload
	if m.err != nil {
		return dto.ConversationResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockConversationService) Delete(_ context.Context, conversationID, _ string) error {
	m.lastDelete = conversationID
	return m.err
}

func (m *mockConversationService) Subscribe(_ string) (<-chan dto.DirectoryEvent, func()) {
	ch := make(chan dto.DirectoryEvent)
	return ch, func() { close(ch) }
}

func (m *mockConversationService) PublishUpdate(_ context.Context, _ string) {}

func conversationApp(svc service.ConversationService, userID string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/conversations", func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	handler.NewConversationHandler(svc, 30*time.Second, zerolog.New(io.Discard)).Register(group)
	return app
}

func TestGetOrCreateForcesAuthenticatedInitiator(t *testing.T) {
	svc := &mockConversationService{response: dto.ConversationResponse{ID: "conv-1"}}
	app := conversationApp(svc, "tenant-1")

	payload := dto.ConversationCreateRequest{
		Initiator: dto.ParticipantSnapshot{UserID: "someone-else", Name: "Mallory"},
		Peer:      dto.ParticipantSnapshot{UserID: "advertiser-1", Name: "Bob"},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Empty(t, svc.lastCreate.Peer.UserID, "service must not be reached")
}

func TestGetOrCreateFillsMissingInitiator(t *testing.T) {
	svc := &mockConversationService{response: dto.ConversationResponse{ID: "conv-1"}}
	app := conversationApp(svc, "tenant-1")

	payload := dto.ConversationCreateRequest{
		Peer: dto.ParticipantSnapshot{UserID: "advertiser-1", Name: "Bob"},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "tenant-1", svc.lastCreate.Initiator.UserID)
}

func TestGetOrCreateMapsSelfConversation(t *testing.T) {
	svc := &mockConversationService{err: service.ErrSelfConversation}
	app := conversationApp(svc, "tenant-1")

	payload := dto.ConversationCreateRequest{
		Peer: dto.ParticipantSnapshot{UserID: "tenant-1", Name: "Alice"},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteConversationErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "missing", err: gorm.ErrRecordNotFound, status: fiber.StatusNotFound},
		{name: "not participant", err: service.ErrNotParticipant, status: fiber.StatusForbidden},
		{name: "ok", err: nil, status: fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockConversationService{err: tc.err}
			app := conversationApp(svc, "tenant-1")

			req := httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/conv-1", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, "conv-1", svc.lastDelete)
		})
	}
}

func TestListRequiresAuthentication(t *testing.T) {
	svc := &mockConversationService{}
	app := conversationApp(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
