package model

import (
	"time"
)

type Message struct {
	ID             int64     `db:"id" json:"id,omitempty"`
	ConversationID int64     `db:"conversation_id" json:"-"`
	Role           Role      `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at,omitzero"`
}

type CreateMessageParams struct {
	ConversationID int64
	Role           Role
	Content        string
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID int64  `json:"conversation_id"`
}
