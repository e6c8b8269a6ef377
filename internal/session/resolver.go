package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const maxDisplayNameLength = 32

var ErrInvalidDisplayName = errors.New("display name must be 1-32 characters")

// Resolver maps opaque session tokens to stable identities.
type Resolver struct {
	store Store
	newID func() string
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		newID: uuid.NewString,
	}
}

// Resolve returns the identity bound to token, binding a fresh one on first sight.
// Concurrent first resolutions of one token agree on the same id.
func (that *Resolver) Resolve(ctx context.Context, token string) (entity.Identity, error) {
	record, err := that.store.Get(ctx, token)
	if err == nil {
		return entity.NewIdentity(record.UID, record.DisplayName), nil
	}

	if !errors.Is(err, apperror.ErrSessionNotFound) {
		return entity.Identity{}, fmt.Errorf("failed to get session: %w", err)
	}

	record, err = that.store.SaveIfAbsent(ctx, token, Record{UID: that.newID()})
	if err != nil {
		return entity.Identity{}, fmt.Errorf("failed to save session: %w", err)
	}

	return entity.NewIdentity(record.UID, record.DisplayName), nil
}

// Rename stores a display name for the session and returns the updated identity.
func (that *Resolver) Rename(ctx context.Context, token, displayName string) (entity.Identity, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || len([]rune(displayName)) > maxDisplayNameLength {
		return entity.Identity{}, ErrInvalidDisplayName
	}

	identity, err := that.Resolve(ctx, token)
	if err != nil {
		return entity.Identity{}, err
	}

	if err = that.store.SetDisplayName(ctx, token, displayName); err != nil {
		return entity.Identity{}, fmt.Errorf("failed to set display name: %w", err)
	}

	return entity.NewIdentity(identity.ID, displayName), nil
}
