package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xaenox/edu-assistant/internal/models"
)

func msg(role models.Role, content string, t models.MessageType) models.Message {
	return models.Message{ID: content, Role: role, Content: content, Type: t}
}

func TestProject_FiltersByTypeKeepingOrder(t *testing.T) {
	messages := []models.Message{
		msg(models.RoleUser, "q1", models.TypeQuestion),
		msg(models.RoleUser, "z1", models.TypeQuiz),
		msg(models.RoleAssistant, "a1", models.TypeQuestion),
		msg(models.RoleAssistant, "z2", models.TypeQuiz),
		msg(models.RoleUser, "q2", models.TypeQuestion),
		msg(models.RoleUser, "untyped", ""),
	}

	got := Project(messages, models.TypeQuestion)

	assert.Equal(t, []models.HistoryEntry{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}, got)
}

func TestProject_NoMatches(t *testing.T) {
	messages := []models.Message{msg(models.RoleUser, "q1", models.TypeQuestion)}

	got := Project(messages, models.TypeTask)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	messages := []models.Message{
		msg(models.RoleUser, "q1", models.TypeQuestion),
		msg(models.RoleUser, "t1", models.TypeTask),
	}
	before := append([]models.Message(nil), messages...)

	first := Project(messages, models.TypeTask)
	second := Project(messages, models.TypeTask)

	assert.Equal(t, before, messages)
	assert.Equal(t, first, second)
}
