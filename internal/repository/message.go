package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/saadkhi/Side/internal/model"
)

type MessageRepository interface {
	FindByConversationID(ctx context.Context, conversationID int64) ([]model.Message, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByConversationID(ctx context.Context, conversationID int64) ([]model.Message, error) {
	msgs := []model.Message{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	return msgs, err
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.ConversationID, params.Role, params.Content)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
