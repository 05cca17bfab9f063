package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/edu-assistant/internal/models"
	"github.com/xaenox/edu-assistant/internal/reasoner"
	"github.com/xaenox/edu-assistant/internal/storage"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingReasoner struct{}

func (failingReasoner) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	return nil, errors.New("model unavailable")
}

func (failingReasoner) Quiz(ctx context.Context, req models.QuizRequest) (*models.QuizResponse, error) {
	return nil, errors.New("model unavailable")
}

func (failingReasoner) Task(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error) {
	return nil, errors.New("model unavailable")
}

type testServer struct {
	router *gin.Engine
	store  *storage.MemoryStorage
}

func newTestServer(t *testing.T, r reasoner.Reasoner) *testServer {
	t.Helper()
	store := storage.NewMemoryStorage()
	return &testServer{router: NewRouter(store, r, zap.NewNop()), store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) create(t *testing.T, owner, title string, typ models.MessageType) models.Conversation {
	t.Helper()
	w := s.do(t, http.MethodPost, "/conversations", models.CreateConversationRequest{
		OwnerID: owner, Title: title, ConversationType: typ,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.Conversation](t, w)
}

func TestStart_RequiresDependencies(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage is required")

	err = Start(context.Background(), StartOpts{Storage: storage.NewMemoryStorage()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoner is required")
}

func TestInference(t *testing.T) {
	s := newTestServer(t, reasoner.NewOffline())

	w := s.do(t, http.MethodPost, "/ask", models.AskRequest{Question: "What is a set?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "What is a set?", decode[models.AskResponse](t, w).Question)

	w = s.do(t, http.MethodPost, "/quiz", models.QuizRequest{Topic: "sets", Num: 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sets", decode[models.QuizResponse](t, w).Topic)

	w = s.do(t, http.MethodPost, "/task", models.TaskRequest{Topic: "graphs"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[models.TaskResponse](t, w).Task, "graphs")
}

func TestInference_Validation(t *testing.T) {
	s := newTestServer(t, reasoner.NewOffline())

	tests := []struct {
		name string
		path string
		body any
	}{
		{"empty question", "/ask", models.AskRequest{}},
		{"empty quiz topic", "/quiz", models.QuizRequest{}},
		{"empty task topic", "/task", models.TaskRequest{Topic: "  "}},
		{"malformed body", "/ask", "not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.NotEmpty(t, decode[map[string]string](t, w)["detail"])
		})
	}
}

func TestInference_ReasonerError(t *testing.T) {
	s := newTestServer(t, failingReasoner{})

	w := s.do(t, http.MethodPost, "/ask", models.AskRequest{Question: "q"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to answer question", decode[map[string]string](t, w)["detail"])
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestServer(t, reasoner.NewOffline())

	conv := s.create(t, "user_a", "12.03.2024, 10:00:00", models.TypeQuiz)
	assert.NotZero(t, conv.ID)
	assert.Equal(t, models.TypeQuiz, conv.ConversationType)

	for _, m := range []models.AddMessageRequest{
		{ConversationID: conv.ID, Role: models.RoleUser, Content: "sets"},
		{ConversationID: conv.ID, Role: models.RoleAssistant, Content: "1. What is a union?"},
	} {
		w := s.do(t, http.MethodPost, "/messages", m)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotZero(t, decode[models.StoredMessage](t, w).ID)
	}

	w := s.do(t, http.MethodGet, "/conversations/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Conversation](t, w)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "sets", got.Messages[0].Content)

	w = s.do(t, http.MethodGet, "/conversations/1/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.StoredMessage](t, w), 2)

	w = s.do(t, http.MethodPut, "/conversations/1/title?title=Sets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusResponse{Status: "updated", Title: "Sets"}, decode[models.StatusResponse](t, w))

	w = s.do(t, http.MethodGet, "/conversations/1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode[models.ConversationSnapshot](t, w)
	assert.Equal(t, "Sets", snapshot.Conversation.Title)
	assert.Empty(t, snapshot.Conversation.Messages)
	assert.Len(t, snapshot.Messages, 2)
	assert.False(t, snapshot.ExportedAt.IsZero())

	w = s.do(t, http.MethodDelete, "/conversations/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted", decode[models.StatusResponse](t, w).Status)

	w = s.do(t, http.MethodGet, "/conversations/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Conversation not found", decode[map[string]string](t, w)["detail"])
}

func TestConversation_Errors(t *testing.T) {
	s := newTestServer(t, reasoner.NewOffline())

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown type", http.MethodPost, "/conversations", models.CreateConversationRequest{OwnerID: "u", Title: "t", ConversationType: "essay"}, http.StatusUnprocessableEntity},
		{"missing owner", http.MethodPost, "/conversations", models.CreateConversationRequest{Title: "t", ConversationType: models.TypeTask}, http.StatusUnprocessableEntity},
		{"bad id", http.MethodGet, "/conversations/abc", nil, http.StatusUnprocessableEntity},
		{"missing conversation", http.MethodGet, "/conversations/99", nil, http.StatusNotFound},
		{"messages of missing conversation", http.MethodGet, "/conversations/99/messages", nil, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/conversations/99", nil, http.StatusNotFound},
		{"rename missing", http.MethodPut, "/conversations/99/title?title=x", nil, http.StatusNotFound},
		{"rename without title", http.MethodPut, "/conversations/99/title", nil, http.StatusUnprocessableEntity},
		{"export missing", http.MethodGet, "/conversations/99/export", nil, http.StatusNotFound},
		{"message to missing conversation", http.MethodPost, "/messages", models.AddMessageRequest{ConversationID: 99, Role: models.RoleUser, Content: "x"}, http.StatusNotFound},
		{"message with bad role", http.MethodPost, "/messages", models.AddMessageRequest{ConversationID: 1, Role: "system", Content: "x"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["detail"])
		})
	}
}

func TestListConversations(t *testing.T) {
	s := newTestServer(t, reasoner.NewOffline())
	s.create(t, "user_a", "Algebra", models.TypeQuestion)
	s.create(t, "user_a", "Geometry quiz", models.TypeQuiz)
	s.create(t, "user_b", "Algebra too", models.TypeQuestion)

	w := s.do(t, http.MethodGet, "/users/user_a/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.ConversationPage](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 0, page.Skip)
	assert.Equal(t, storage.DefaultListLimit, page.Limit)
	assert.Len(t, page.Conversations, 2)

	w = s.do(t, http.MethodGet, "/users/user_a/conversations?search=algebra&conversation_type=question", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[models.ConversationPage](t, w)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, "Algebra", page.Conversations[0].Title)

	w = s.do(t, http.MethodGet, "/users/user_a/conversations?skip=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[models.ConversationPage](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Conversations, 1)

	future := time.Now().Add(24 * time.Hour).UTC().Format("2006-01-02")
	w = s.do(t, http.MethodGet, "/users/user_a/conversations?date_from="+future, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.ConversationPage](t, w).Total)

	for _, query := range []string{"skip=-1", "limit=0", "limit=x", "conversation_type=essay", "date_from=yesterday"} {
		w = s.do(t, http.MethodGet, "/users/user_a/conversations?"+query, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, query)
	}
}
