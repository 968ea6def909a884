package model

import (
	"time"
)

const UntitledConversation = "Untitled Chat"

type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayTitle falls back to a placeholder for conversations without a title.
func (c Conversation) DisplayTitle() string {
	if c.Title == "" {
		return UntitledConversation
	}
	return c.Title
}

type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}

type CreateConversationParams struct {
	UserID int64
	Title  string
}
