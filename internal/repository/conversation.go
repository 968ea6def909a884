package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/saadkhi/Side/internal/model"
)

// ConversationRepository scopes every lookup to the owning user.
type ConversationRepository interface {
	FindByID(ctx context.Context, id, userID int64) (*model.Conversation, error)
	FindByUserID(ctx context.Context, userID int64) ([]model.Conversation, error)
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)
	Touch(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id, userID int64) (bool, error)
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id, userID int64) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations WHERE id = $1 AND user_id = $2
	`, id, userID)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindByUserID(ctx context.Context, userID int64) ([]model.Conversation, error) {
	convs := []model.Conversation{}
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC
	`, userID)
	return convs, err
}

func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING *
	`, params.UserID, params.Title)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) Touch(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *conversationRepo) Delete(ctx context.Context, id, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
