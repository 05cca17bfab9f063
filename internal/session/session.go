package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/edu-assistant/internal/history"
	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
)

var (
	ErrBusy           = errors.New("session: a send is already in progress")
	ErrNoType         = errors.New("session: no conversation type selected")
	ErrEmptyInput     = errors.New("session: message is empty")
	// ErrBindingChanged means another conversation was bound before the
	// user message could be appended.
	ErrBindingChanged = errors.New("session: conversation changed during send")
)

// ReasoningAPI is the part of the backend that answers requests.
type ReasoningAPI interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
	Quiz(ctx context.Context, req models.QuizRequest) (*models.QuizResponse, error)
	Task(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error)
}

// Backend is everything a Session needs from the remote side.
type Backend interface {
	ConversationAPI
	ReasoningAPI
}

// Texts are the user-visible strings a Session produces.
type Texts struct {
	// Fallback replaces the assistant reply when the reasoning call fails.
	Fallback string
	// QuizFormat and TaskFormat take the topic and the generated body.
	QuizFormat  string
	TaskFormat  string
	TitleLayout string
}

func DefaultTexts() Texts {
	return Texts{
		Fallback:    "Sorry, something went wrong. Please try again.",
		QuizFormat:  "Quiz on \"%s\":\n\n%s",
		TaskFormat:  "Task on \"%s\":\n\n%s",
		TitleLayout: DefaultTitleLayout,
	}
}

type Options struct {
	// AskK is sent as k with questions; 0 leaves it to the backend.
	AskK int
	// QuizNum is the number of quiz items requested.
	QuizNum int
	Texts   Texts
}

// Session is the mutation API used by front-ends: the Store, its Lifecycle
// and the send orchestration.
type Session struct {
	*Store
	*Lifecycle

	reasoning ReasoningAPI
	opts      Options
	logger    *zap.Logger
}

func New(store *Store, backend Backend, opts Options, logger *zap.Logger) *Session {
	defaults := DefaultTexts()
	if opts.Texts.Fallback == "" {
		opts.Texts.Fallback = defaults.Fallback
	}
	if opts.Texts.QuizFormat == "" {
		opts.Texts.QuizFormat = defaults.QuizFormat
	}
	if opts.Texts.TaskFormat == "" {
		opts.Texts.TaskFormat = defaults.TaskFormat
	}
	if opts.QuizNum <= 0 {
		opts.QuizNum = 5
	}

	return &Session{
		Store:     store,
		Lifecycle: NewLifecycle(store, backend, opts.Texts.TitleLayout, logger),
		reasoning: backend,
		opts:      opts,
		logger:    logger,
	}
}

// Send runs one chat turn for the current type and returns the assistant
// message appended to the transcript.
//
// The bound conversation is reused when it has the current type, otherwise
// a new one is created; if that fails nothing is appended. Messages are
// mirrored to the conversation chosen here even if another one is bound
// while the send runs. The history is projected before the
// user message is appended. A failed reasoning call is not an error: the
// fallback text is appended as the reply instead. The send guard is
// released on every path.
func (s *Session) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyInput
	}
	t := s.CurrentType()
	if !t.Valid() {
		return models.Message{}, ErrNoType
	}
	if !s.TryBeginSend() {
		return models.Message{}, ErrBusy
	}
	defer s.SetLoading(false)

	conversationID, err := s.conversationFor(ctx, t)
	if err != nil {
		return models.Message{}, err
	}

	hist := history.Project(s.Messages(), t)

	if _, ok := s.appendTo(conversationID, models.Message{Role: models.RoleUser, Content: text, Type: t}); !ok {
		return models.Message{}, ErrBindingChanged
	}
	s.mirrorTo(ctx, conversationID, models.RoleUser, text)

	reply, err := s.reason(ctx, t, text, hist)
	if err != nil {
		s.logger.Error("Reasoning request failed",
			zap.Error(err),
			zap.String("type", string(t)),
			zap.Int64("conversation_id", conversationID))
		return s.appendReply(conversationID, models.Message{
			Role:    models.RoleAssistant,
			Content: s.opts.Texts.Fallback,
			Type:    t,
		}), nil
	}

	msg := s.appendReply(conversationID, models.Message{Role: models.RoleAssistant, Content: reply, Type: t})
	s.mirrorTo(ctx, conversationID, models.RoleAssistant, reply)
	return msg, nil
}

// appendReply adds the reply to the transcript unless another conversation
// was bound while the send was running.
func (s *Session) appendReply(conversationID int64, msg models.Message) models.Message {
	msg, ok := s.appendTo(conversationID, msg)
	if !ok {
		s.logger.Warn("Conversation changed during send, reply kept out of transcript",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("current_conversation_id", s.CurrentConversationID()))
	}
	return msg
}

func (s *Session) reason(ctx context.Context, t models.MessageType, text string, hist []models.HistoryEntry) (string, error) {
	switch t {
	case models.TypeQuestion:
		resp, err := s.reasoning.Ask(ctx, models.AskRequest{Question: text, K: s.opts.AskK, History: hist})
		if err != nil {
			return "", err
		}
		return resp.Answer, nil
	case models.TypeQuiz:
		resp, err := s.reasoning.Quiz(ctx, models.QuizRequest{Topic: text, Num: s.opts.QuizNum, History: hist})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(s.opts.Texts.QuizFormat, resp.Topic, resp.Questions), nil
	case models.TypeTask:
		resp, err := s.reasoning.Task(ctx, models.TaskRequest{Topic: text, History: hist})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(s.opts.Texts.TaskFormat, resp.Topic, resp.Task), nil
	}
	return "", fmt.Errorf("session: unsupported type %q", t)
}
