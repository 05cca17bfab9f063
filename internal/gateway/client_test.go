package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", 0, zap.NewNop())
}

func TestClient_Ask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is entropy?", req.Question)
		assert.Equal(t, 3, req.K)
		assert.Len(t, req.History, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"question":"What is entropy?","answer":"A measure of disorder."}`))
	})

	resp, err := client.Ask(context.Background(), models.AskRequest{
		Question: "What is entropy?",
		K:        3,
		History:  []models.HistoryEntry{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "A measure of disorder.", resp.Answer)
}

func TestClient_QuizAndTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quiz":
			var req models.QuizRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 5, req.Num)
			w.Write([]byte(`{"topic":"graphs","questions":"1. What is a DAG?"}`))
		case "/task":
			w.Write([]byte(`{"topic":"graphs","task":"Implement BFS."}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	quiz, err := client.Quiz(context.Background(), models.QuizRequest{Topic: "graphs", Num: 5})
	require.NoError(t, err)
	assert.Equal(t, "1. What is a DAG?", quiz.Questions)

	task, err := client.Task(context.Background(), models.TaskRequest{Topic: "graphs"})
	require.NoError(t, err)
	assert.Equal(t, "Implement BFS.", task.Task)
}

func TestClient_ListConversationsQuery(t *testing.T) {
	from := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/owner-1/conversations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "20", q.Get("skip"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "sets", q.Get("search"))
		assert.Equal(t, "quiz", q.Get("conversation_type"))
		assert.Equal(t, "2026-01-02T00:00:00Z", q.Get("date_from"))
		assert.False(t, q.Has("date_to"))
		w.Write([]byte(`{"conversations":[{"id":7,"user_id":"owner-1","title":"t","conversation_type":"quiz"}],"total":21,"skip":20,"limit":10}`))
	})

	page, err := client.ListConversations(context.Background(), models.ConversationFilter{
		OwnerID: "owner-1",
		Skip:    20,
		Limit:   10,
		Search:  "sets",
		Type:    models.TypeQuiz,
		From:    &from,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, int64(7), page.Conversations[0].ID)
	assert.Equal(t, models.TypeQuiz, page.Conversations[0].ConversationType)
}

func TestClient_ConversationCRUD(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/conversations":
			var req models.CreateConversationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "owner-1", req.OwnerID)
			w.Write([]byte(`{"id":3,"user_id":"owner-1","title":"x","conversation_type":"task"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/conversations/3":
			w.Write([]byte(`{"id":3,"conversation_type":"task","messages":[{"id":1,"conversation_id":3,"role":"user","content":"hi"}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/conversations/3/messages":
			w.Write([]byte(`[{"id":1,"conversation_id":3,"role":"user","content":"hi"}]`))
		case r.Method == http.MethodPut && r.URL.Path == "/conversations/3/title":
			assert.Equal(t, "Renamed", r.URL.Query().Get("title"))
			w.Write([]byte(`{"status":"ok","title":"Renamed"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/messages":
			w.Write([]byte(`{"id":2,"conversation_id":3,"role":"assistant","content":"hello"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/conversations/3":
			w.Write([]byte(`{"status":"deleted"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/conversations/3/export":
			w.Write([]byte(`{"conversation":{"id":3},"messages":[]}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, models.CreateConversationRequest{OwnerID: "owner-1", Title: "x", ConversationType: models.TypeTask})
	require.NoError(t, err)
	assert.Equal(t, int64(3), conv.ID)

	loaded, err := client.GetConversation(ctx, 3)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)

	msgs, err := client.GetMessages(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	status, err := client.UpdateTitle(ctx, 3, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", status.Title)

	stored, err := client.AddMessage(ctx, models.AddMessageRequest{ConversationID: 3, Role: models.RoleAssistant, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ID)

	snapshot, err := client.ExportConversation(ctx, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation":{"id":3},"messages":[]}`, string(snapshot))

	require.NoError(t, client.DeleteConversation(ctx, 3))
}

func TestClient_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"down"}`))
	})

	_, err := client.Ask(context.Background(), models.AskRequest{Question: "q"})

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, KindStatus, gwErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.StatusCode)
	assert.Equal(t, "Service Unavailable", gwErr.Status)
	assert.Equal(t, "down", gwErr.Detail)
	assert.Contains(t, err.Error(), "Service Unavailable")
	assert.Contains(t, err.Error(), "down")
}

func TestClient_StatusErrorWithoutJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	err := client.DeleteConversation(context.Background(), 4)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
	assert.Empty(t, gwErr.Detail)
	assert.Equal(t, "gateway: delete conversation: API error: Bad Gateway", err.Error())
}

func TestClient_DecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := client.GetConversation(context.Background(), 1)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, KindDecode, gwErr.Kind)
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()
	client := NewClient(url, time.Second, zap.NewNop())

	_, err := client.Task(context.Background(), models.TaskRequest{Topic: "t"})

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, KindNetwork, gwErr.Kind)
}

func TestClient_SingleAttempt(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Quiz(context.Background(), models.QuizRequest{Topic: "t"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
