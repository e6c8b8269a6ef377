package session

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
)

// Record is what a session token resolves to.
type Record struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
}

type Store interface {
	// Get returns apperror.ErrSessionNotFound for unknown tokens.
	Get(ctx context.Context, token string) (Record, error)
	// SaveIfAbsent stores record unless the token is already bound and returns the bound record.
	SaveIfAbsent(ctx context.Context, token string, record Record) (Record, error)
	SetDisplayName(ctx context.Context, token, displayName string) error
}

// MemoryStore keeps sessions for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Record),
	}
}

func (that *MemoryStore) Get(_ context.Context, token string) (Record, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	record, ok := that.sessions[token]
	if !ok {
		return Record{}, apperror.ErrSessionNotFound
	}

	return record, nil
}

func (that *MemoryStore) SaveIfAbsent(_ context.Context, token string, record Record) (Record, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if existing, ok := that.sessions[token]; ok {
		return existing, nil
	}

	that.sessions[token] = record

	return record, nil
}

func (that *MemoryStore) SetDisplayName(_ context.Context, token, displayName string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	record, ok := that.sessions[token]
	if !ok {
		return apperror.ErrSessionNotFound
	}

	record.DisplayName = displayName
	that.sessions[token] = record

	return nil
}
