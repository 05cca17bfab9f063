package reasoner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
)

const (
	askSystem = "You are a study assistant. Answer the student's question clearly and concisely. " +
		"If you are not sure, say that there is not enough information."
	quizSystem = "You write self-check questions for a student. Keep them clear and short."
	taskSystem = "You write study assignments. State the goal, the assignment itself, " +
		"the grading criteria and what the student must hand in."
)

var ErrEmptyCompletion = errors.New("reasoner: empty completion")

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAI answers every request with one chat completion: a system prompt,
// the projected history, then the user prompt.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (r *OpenAI) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	prompt := fmt.Sprintf("Question: %s\n\nUse at most %d key points in the answer.", req.Question, k)

	answer, err := r.complete(ctx, askSystem, req.History, prompt)
	if err != nil {
		return nil, err
	}
	return &models.AskResponse{Question: req.Question, Answer: answer}, nil
}

func (r *OpenAI) Quiz(ctx context.Context, req models.QuizRequest) (*models.QuizResponse, error) {
	num := req.Num
	if num <= 0 {
		num = DefaultQuizNum
	}
	prompt := fmt.Sprintf("Write %d questions on the topic: %s.\nFormat them as a numbered list.", num, req.Topic)

	questions, err := r.complete(ctx, quizSystem, req.History, prompt)
	if err != nil {
		return nil, err
	}
	return &models.QuizResponse{Topic: req.Topic, Questions: questions}, nil
}

func (r *OpenAI) Task(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error) {
	prompt := fmt.Sprintf("Write an assignment on the topic: %s.\n"+
		"Include the goal, the statement, grading criteria and the expected answer format.", req.Topic)

	task, err := r.complete(ctx, taskSystem, req.History, prompt)
	if err != nil {
		return nil, err
	}
	return &models.TaskResponse{Topic: req.Topic, Task: task}, nil
}

func (r *OpenAI) complete(ctx context.Context, system string, history []models.HistoryEntry, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    chatMessages(system, history, prompt),
		MaxTokens:   r.maxTokens,
		Temperature: float32(r.temperature),
	})
	if err != nil {
		r.logger.Error("Failed to get completion", zap.Error(err), zap.String("model", r.model))
		return "", fmt.Errorf("reasoner: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func chatMessages(system string, history []models.HistoryEntry, prompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, h := range history {
		role := openai.ChatMessageRoleUser
		if h.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}
