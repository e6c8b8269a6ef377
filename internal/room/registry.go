package room

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
)

// Registry maps unique names to rooms and remembers creation order.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	names []string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// Create registers a new empty room. Check and insert happen under one lock.
func (that *Registry) Create(name string) (*Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.ErrEmptyRoomName
	}

	if name == "." || name == ".." || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %s", apperror.ErrInvalidRoomName, name)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.rooms[name]; ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomAlreadyExists, name)
	}

	room := New(name)
	that.rooms[name] = room
	that.names = append(that.names, name)

	return room, nil
}

func (that *Registry) Get(name string) (*Room, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[name]
	return room, ok
}

// Remove unregisters the room; its members are left to the caller.
func (that *Registry) Remove(name string) (*Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, name)
	}

	delete(that.rooms, name)
	that.names = slices.DeleteFunc(that.names, func(existing string) bool {
		return existing == name
	})

	return room, nil
}

// ListNames returns room names in creation order.
func (that *Registry) ListNames() []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return slices.Clone(that.names)
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}
