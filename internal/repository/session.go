package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
)

const sessionKeyPrefix = "session:"

// SessionRepository stores session records in Redis under session:<token>.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func (that *SessionRepository) Get(ctx context.Context, token string) (session.Record, error) {
	response, err := that.client.Get(ctx, sessionKey(token)).Result()

	if errors.Is(err, redis.Nil) {
		return session.Record{}, apperror.ErrSessionNotFound
	}

	if err != nil {
		return session.Record{}, fmt.Errorf("failed to get session: %w", err)
	}

	var record session.Record
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return session.Record{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return record, nil
}

// SaveIfAbsent relies on SETNX so concurrent first resolutions bind one record.
func (that *SessionRepository) SaveIfAbsent(ctx context.Context, token string, record session.Record) (session.Record, error) {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to marshal session: %w", err)
	}

	stored, err := that.client.SetNX(ctx, sessionKey(token), recordJSON, that.ttl).Result()
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to save session: %w", err)
	}

	if stored {
		return record, nil
	}

	return that.Get(ctx, token)
}

func (that *SessionRepository) SetDisplayName(ctx context.Context, token, displayName string) error {
	record, err := that.Get(ctx, token)
	if err != nil {
		return err
	}

	record.DisplayName = displayName

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err = that.client.Set(ctx, sessionKey(token), recordJSON, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}
