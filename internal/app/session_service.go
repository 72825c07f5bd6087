package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gopherblog/internal/model"
)

const sessionTokenBytes = 32

// SessionStore persists sessions keyed by the hash of their token. Get
// returns nil, nil when nothing is stored under the hash.
type SessionStore interface {
	Save(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, tokenHash string) (*model.Session, error)
	Delete(ctx context.Context, tokenHash string) error
}

type SessionService struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{store: store, ttl: ttl, now: time.Now}
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// StartSession issues a fresh random token bound to userID.
func (s *SessionService) StartSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", &ValidationError{Field: "user_id", Message: "is required"}
	}

	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token failed: %w", err)
	}
	token := hex.EncodeToString(buf)

	now := s.now()
	session := &model.Session{
		TokenHash: hashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return "", storageError("save session", err)
	}
	return token, nil
}

// Resolve maps a token back to its user. ok is false for missing, malformed,
// unknown and expired tokens.
func (s *SessionService) Resolve(ctx context.Context, token string) (userID string, ok bool, err error) {
	if !wellFormedToken(token) {
		return "", false, nil
	}

	key := hashToken(token)
	session, err := s.store.Get(ctx, key)
	if err != nil {
		return "", false, storageError("get session", err)
	}
	if session == nil {
		return "", false, nil
	}
	if session.Expired(s.now()) {
		if err := s.store.Delete(ctx, key); err != nil {
			return "", false, storageError("delete expired session", err)
		}
		return "", false, nil
	}
	return session.UserID, true, nil
}

// EndSession is idempotent.
func (s *SessionService) EndSession(ctx context.Context, token string) error {
	if !wellFormedToken(token) {
		return nil
	}
	if err := s.store.Delete(ctx, hashToken(token)); err != nil {
		return storageError("delete session", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func wellFormedToken(token string) bool {
	if len(token) != sessionTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
