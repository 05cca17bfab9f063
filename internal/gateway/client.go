// Package gateway is the typed HTTP boundary to the study-assistant backend.
// Every method performs exactly one request and returns a *Error on failure;
// nothing is retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
)

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client for baseURL. A zero timeout leaves requests
// unbounded.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	var out models.AskResponse
	if err := c.do(ctx, "ask", http.MethodPost, "/ask", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Quiz(ctx context.Context, req models.QuizRequest) (*models.QuizResponse, error) {
	var out models.QuizResponse
	if err := c.do(ctx, "quiz", http.MethodPost, "/quiz", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Task(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error) {
	var out models.TaskResponse
	if err := c.do(ctx, "task", http.MethodPost, "/task", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.do(ctx, "create conversation", http.MethodPost, "/conversations", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a conversation together with its messages.
func (c *Client) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.do(ctx, "get conversation", http.MethodGet, conversationPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations returns one page of the owner's conversations. Zero
// fields of filter are omitted from the query.
func (c *Client) ListConversations(ctx context.Context, filter models.ConversationFilter) (*models.ConversationPage, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(filter.Skip))
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Type != "" {
		query.Set("conversation_type", string(filter.Type))
	}
	if filter.From != nil {
		query.Set("date_from", filter.From.Format(time.RFC3339))
	}
	if filter.To != nil {
		query.Set("date_to", filter.To.Format(time.RFC3339))
	}

	path := "/users/" + url.PathEscape(filter.OwnerID) + "/conversations"
	var out models.ConversationPage
	if err := c.do(ctx, "list conversations", http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	var out models.StatusResponse
	return c.do(ctx, "delete conversation", http.MethodDelete, conversationPath(id), nil, nil, &out)
}

func (c *Client) AddMessage(ctx context.Context, req models.AddMessageRequest) (*models.StoredMessage, error) {
	var out models.StoredMessage
	if err := c.do(ctx, "add message", http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMessages(ctx context.Context, conversationID int64) ([]models.StoredMessage, error) {
	var out []models.StoredMessage
	if err := c.do(ctx, "get messages", http.MethodGet, conversationPath(conversationID)+"/messages", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateTitle(ctx context.Context, id int64, title string) (*models.StatusResponse, error) {
	query := url.Values{}
	query.Set("title", title)
	var out models.StatusResponse
	if err := c.do(ctx, "update title", http.MethodPut, conversationPath(id)+"/title", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportConversation returns the backend's export snapshot untouched.
func (c *Client) ExportConversation(ctx context.Context, id int64) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "export conversation", http.MethodGet, conversationPath(id)+"/export", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

const maxErrorBody = 64 << 10

func conversationPath(id int64) string {
	return "/conversations/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindDecode, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Backend request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Op:         op,
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Detail:     readDetail(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// readDetail extracts the "detail" field of an error body. Bodies that are
// not JSON yield an empty string.
func readDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Detail
}
