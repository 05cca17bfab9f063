// Package reasoner answers the inference endpoints of the companion server.
package reasoner

import (
	"context"

	"github.com/xaenox/edu-assistant/internal/models"
)

const (
	DefaultK       = 5
	DefaultQuizNum = 5
)

type Reasoner interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
	Quiz(ctx context.Context, req models.QuizRequest) (*models.QuizResponse, error)
	Task(ctx context.Context, req models.TaskRequest) (*models.TaskResponse, error)
}
