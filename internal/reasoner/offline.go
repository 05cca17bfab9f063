package reasoner

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/edu-assistant/internal/models"
)

// Offline is used when no model is configured. It builds deterministic
// answers from the request text alone.
type Offline struct{}

func NewOffline() *Offline {
	return &Offline{}
}

func (Offline) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	answer := fmt.Sprintf("No model is configured, so I cannot answer %q yet.", req.Question)
	if n := len(req.History); n > 0 {
		answer += fmt.Sprintf(" (%d earlier messages in this conversation)", n)
	}
	return &models.AskResponse{Question: req.Question, Answer: answer}, nil
}

func (Offline) Quiz(ctx context.Context, req models.QuizRequest) (*models.QuizResponse, error) {
	num := req.Num
	if num <= 0 {
		num = DefaultQuizNum
	}

	var b strings.Builder
	for i := 1; i <= num; i++ {
		fmt.Fprintf(&b, "%d. What is key point %d of %s?\n", i, i, req.Topic)
	}
	return &models.QuizResponse{Topic: req.Topic, Questions: strings.TrimSuffix(b.String(), "\n")}, nil
}

func (Offline) Task(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error) {
	task := fmt.Sprintf("Goal: study %[1]s.\nAssignment: write a one-page summary of %[1]s.\n"+
		"Criteria: accuracy, structure.\nHand in: a text document.", req.Topic)
	return &models.TaskResponse{Topic: req.Topic, Task: task}, nil
}
