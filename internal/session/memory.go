package session

import (
	"context"
	"sync"

	"github.com/saadkhi/Side/internal/model"
)

// MemoryBackend keeps the session for the lifetime of the process only.
type MemoryBackend struct {
	mu   sync.Mutex
	sess *model.Session
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(ctx context.Context) (*model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sess == nil {
		return nil, nil
	}
	copied := *b.sess
	return &copied, nil
}

func (b *MemoryBackend) Save(ctx context.Context, s *model.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *s
	b.sess = &copied
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sess = nil
	return nil
}
