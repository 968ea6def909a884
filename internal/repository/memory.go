package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saadkhi/Side/internal/model"
)

// memoryDB backs the in-memory repositories. Deleting a conversation removes
// its messages, mirroring the ON DELETE CASCADE of the postgres schema.
type memoryDB struct {
	mu            sync.RWMutex
	users         map[int64]model.User
	conversations map[int64]model.Conversation
	messages      map[int64][]model.Message
	revoked       map[string]model.RevokedToken
	nextUserID    int64
	nextConvID    int64
	nextMsgID     int64
	now           func() time.Time
}

// NewMemory returns repositories that live in process memory. Used by the
// development API when DATABASE_URL is unset, and by tests.
func NewMemory() Repositories {
	db := &memoryDB{
		users:         make(map[int64]model.User),
		conversations: make(map[int64]model.Conversation),
		messages:      make(map[int64][]model.Message),
		revoked:       make(map[string]model.RevokedToken),
		now:           time.Now,
	}
	return Repositories{
		Users:         (*memoryUsers)(db),
		Conversations: (*memoryConversations)(db),
		Messages:      (*memoryMessages)(db),
		RevokedTokens: (*memoryRevoked)(db),
	}
}

type memoryUsers memoryDB

func (r *memoryUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *memoryUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memoryUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memoryUsers) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == params.Username || strings.EqualFold(u.Email, params.Email) {
			return nil, ErrDuplicate
		}
	}
	r.nextUserID++
	u := model.User{
		ID:           r.nextUserID,
		Username:     params.Username,
		Email:        params.Email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		PasswordHash: params.PasswordHash,
		IsActive:     true,
		DateJoined:   r.now(),
	}
	r.users[u.ID] = u
	return &u, nil
}

type memoryConversations memoryDB

func (r *memoryConversations) FindByID(ctx context.Context, id, userID int64) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conversations[id]; ok && c.UserID == userID {
		return &c, nil
	}
	return nil, nil
}

func (r *memoryConversations) FindByUserID(ctx context.Context, userID int64) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	convs := []model.Conversation{}
	for _, c := range r.conversations {
		if c.UserID == userID {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID > convs[j].ID
	})
	return convs, nil
}

func (r *memoryConversations) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextConvID++
	now := r.now()
	c := model.Conversation{
		ID:        r.nextConvID,
		UserID:    params.UserID,
		Title:     params.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.conversations[c.ID] = c
	return &c, nil
}

func (r *memoryConversations) Touch(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[id]; ok {
		c.UpdatedAt = at
		r.conversations[id] = c
	}
	return nil
}

func (r *memoryConversations) Delete(ctx context.Context, id, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return true, nil
}

type memoryMessages memoryDB

func (r *memoryMessages) FindByConversationID(ctx context.Context, conversationID int64) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Message{}, r.messages[conversationID]...), nil
}

func (r *memoryMessages) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMsgID++
	m := model.Message{
		ID:             r.nextMsgID,
		ConversationID: params.ConversationID,
		Role:           params.Role,
		Content:        params.Content,
		CreatedAt:      r.now(),
	}
	r.messages[params.ConversationID] = append(r.messages[params.ConversationID], m)
	return &m, nil
}

type memoryRevoked memoryDB

func (r *memoryRevoked) Revoke(ctx context.Context, token model.RevokedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.revoked[token.JTI]; ok {
		return nil
	}
	if token.RevokedAt.IsZero() {
		token.RevokedAt = r.now()
	}
	r.revoked[token.JTI] = token
	return nil
}

func (r *memoryRevoked) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[jti]
	return ok, nil
}

func (r *memoryRevoked) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var n int64
	for jti, t := range r.revoked {
		if t.ExpiresAt.Before(now) {
			delete(r.revoked, jti)
			n++
		}
	}
	return n, nil
}
