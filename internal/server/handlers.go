package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/edu-assistant/internal/models"
	"github.com/xaenox/edu-assistant/internal/reasoner"
	"github.com/xaenox/edu-assistant/internal/storage"
	"go.uber.org/zap"
)

type handlers struct {
	store    storage.Storage
	reasoner reasoner.Reasoner
	logger   *zap.Logger
	now      func() time.Time
}

// detail writes the error body shape every endpoint uses.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func (h *handlers) fail(c *gin.Context, err error, msg string) {
	if errors.Is(err, storage.ErrNotFound) {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	detail(c, http.StatusInternalServerError, msg)
}

func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		detail(c, http.StatusUnprocessableEntity, "invalid conversation id")
		return 0, false
	}
	return id, true
}

func (h *handlers) ask(c *gin.Context) {
	var req models.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		detail(c, http.StatusUnprocessableEntity, "question is required")
		return
	}

	resp, err := h.reasoner.Ask(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to answer question")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) quiz(c *gin.Context) {
	var req models.QuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		detail(c, http.StatusUnprocessableEntity, "topic is required")
		return
	}
	if req.Num <= 0 {
		req.Num = reasoner.DefaultQuizNum
	}

	resp, err := h.reasoner.Quiz(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to generate quiz")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) task(c *gin.Context) {
	var req models.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		detail(c, http.StatusUnprocessableEntity, "topic is required")
		return
	}

	resp, err := h.reasoner.Task(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to generate task")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) createConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.OwnerID == "" {
		detail(c, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	if !req.ConversationType.Valid() {
		detail(c, http.StatusUnprocessableEntity, "conversation_type must be one of question, quiz, task")
		return
	}

	conv := &models.Conversation{
		OwnerID:          req.OwnerID,
		Title:            req.Title,
		ConversationType: req.ConversationType,
	}
	if err := h.store.CreateConversation(c.Request.Context(), conv); err != nil {
		h.fail(c, err, "Failed to create conversation")
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *handlers) getConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get conversation")
		return
	}
	if conv.Messages == nil {
		conv.Messages = []models.StoredMessage{}
	}
	c.JSON(http.StatusOK, conv)
}

func (h *handlers) listConversations(c *gin.Context) {
	filter := models.ConversationFilter{
		OwnerID: c.Param("user_id"),
		Search:  c.Query("search"),
		Limit:   storage.DefaultListLimit,
	}

	var err error
	if filter.Skip, err = intQuery(c, "skip", 0); err != nil || filter.Skip < 0 {
		detail(c, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}
	if filter.Limit, err = intQuery(c, "limit", storage.DefaultListLimit); err != nil || filter.Limit <= 0 {
		detail(c, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}
	if raw := c.Query("conversation_type"); raw != "" {
		t, err := models.ParseMessageType(raw)
		if err != nil {
			detail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		filter.Type = t
	}
	if filter.From, err = timeQuery(c, "date_from"); err != nil {
		detail(c, http.StatusUnprocessableEntity, "date_from: "+err.Error())
		return
	}
	if filter.To, err = timeQuery(c, "date_to"); err != nil {
		detail(c, http.StatusUnprocessableEntity, "date_to: "+err.Error())
		return
	}

	conversations, total, err := h.store.ListConversations(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "Failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, models.ConversationPage{
		Conversations: conversations,
		Total:         total,
		Skip:          filter.Skip,
		Limit:         filter.Limit,
	})
}

func (h *handlers) deleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteConversation(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete conversation")
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted"})
}

func (h *handlers) addMessage(c *gin.Context) {
	var req models.AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if !req.Role.Valid() {
		detail(c, http.StatusUnprocessableEntity, "role must be user or assistant")
		return
	}

	msg := &models.StoredMessage{
		ConversationID: req.ConversationID,
		Role:           req.Role,
		Content:        req.Content,
	}
	if err := h.store.AddMessage(c.Request.Context(), msg); err != nil {
		h.fail(c, err, "Failed to add message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) getMessages(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	messages, err := h.store.GetMessages(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *handlers) updateTitle(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		detail(c, http.StatusUnprocessableEntity, "title is required")
		return
	}

	conv, err := h.store.UpdateTitle(c.Request.Context(), id, title)
	if err != nil {
		h.fail(c, err, "Failed to update title")
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "updated", Title: conv.Title})
}

func (h *handlers) exportConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to export conversation")
		return
	}
	messages := conv.Messages
	if messages == nil {
		messages = []models.StoredMessage{}
	}
	conv.Messages = nil

	c.JSON(http.StatusOK, models.ConversationSnapshot{
		Conversation: *conv,
		Messages:     messages,
		ExportedAt:   h.now(),
	})
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// timeQuery accepts RFC 3339 timestamps and plain dates.
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("expected RFC 3339 timestamp or YYYY-MM-DD date")
}
