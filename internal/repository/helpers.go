package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate is returned by Create when a unique column already holds the value.
var ErrDuplicate = errors.New("duplicate key")

const pqUniqueViolation = "23505"

// HandleNotFound maps sql.ErrNoRows to (nil, nil); Find* methods report a
// missing row as a nil result.
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// Repositories groups the stores the API server needs.
type Repositories struct {
	Users         UserRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	RevokedTokens RevokedTokenRepository
}

func NewPostgres(db *sqlx.DB) Repositories {
	return Repositories{
		Users:         NewUserRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		RevokedTokens: NewRevokedTokenRepository(db),
	}
}
