package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"gopherblog/internal/model"
)

// SessionStore keeps sessions in Redis; the key TTL mirrors ExpiresAt so
// Redis drops expired sessions on its own.
type SessionStore struct {
	client *redisv9.Client
	prefix string
}

func NewSessionStore(client *redisv9.Client) *SessionStore {
	return &SessionStore{client: client, prefix: "blog:session:"}
}

type sessionPayload struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *SessionStore) Save(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	payload, err := json.Marshal(sessionPayload{
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.TokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, tokenHash string) (*model.Session, error) {
	raw, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err == redisv9.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session failed: %w", err)
	}

	var p sessionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &model.Session{
		TokenHash: tokenHash,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}
