// Package history derives the context sent with a reasoning request.
package history

import "github.com/xaenox/edu-assistant/internal/models"

// Project returns the role/content pairs of the messages whose type equals
// current, in their original order. Callers build the projection before
// appending the message being sent, so a request never carries itself as
// context.
func Project(messages []models.Message, current models.MessageType) []models.HistoryEntry {
	entries := make([]models.HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		if msg.Type != current {
			continue
		}
		entries = append(entries, models.HistoryEntry{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return entries
}
