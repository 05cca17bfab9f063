// Package export turns transcripts into spreadsheet and JSON files.
package export

import "github.com/xaenox/edu-assistant/internal/models"

// Rows pairs each user message with the assistant message directly after
// it. Assistant messages never start a row, so leading or consecutive
// assistant messages produce nothing. Turn numbers start at 1.
func Rows(messages []models.Message) []models.ExportRow {
	rows := make([]models.ExportRow, 0, len(messages)/2+1)
	turn := 1
	for i, msg := range messages {
		if msg.Role != models.RoleUser {
			continue
		}
		row := models.ExportRow{
			TurnNumber: turn,
			Role:       models.RoleUser,
			Content:    msg.Content,
		}
		if i+1 < len(messages) && messages[i+1].Role == models.RoleAssistant {
			row.ModelResponse = messages[i+1].Content
		}
		rows = append(rows, row)
		turn++
	}
	return rows
}

// StoredToMessages converts backend messages to transcript messages so they
// can go through Rows.
func StoredToMessages(stored []models.StoredMessage, t models.MessageType) []models.Message {
	messages := make([]models.Message, 0, len(stored))
	for _, sm := range stored {
		messages = append(messages, models.Message{
			Role:      sm.Role,
			Content:   sm.Content,
			Timestamp: sm.Timestamp,
			Type:      t,
		})
	}
	return messages
}
