package models

// Request and response bodies of the backend REST surface.

type AskRequest struct {
	Question string         `json:"question"`
	K        int            `json:"k,omitempty"`
	History  []HistoryEntry `json:"history,omitempty"`
}

type AskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type QuizRequest struct {
	Topic   string         `json:"topic"`
	Num     int            `json:"num,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
}

type QuizResponse struct {
	Topic     string `json:"topic"`
	Questions string `json:"questions"`
}

type TaskRequest struct {
	Topic   string         `json:"topic"`
	History []HistoryEntry `json:"history,omitempty"`
}

type TaskResponse struct {
	Topic string `json:"topic"`
	Task  string `json:"task"`
}

type CreateConversationRequest struct {
	OwnerID          string      `json:"user_id"`
	Title            string      `json:"title"`
	ConversationType MessageType `json:"conversation_type"`
}

type AddMessageRequest struct {
	ConversationID int64  `json:"conversation_id"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
}
