package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gopherblog/internal/model"
)

// SessionRepository is the SQL-backed session store.
type SessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) Save(ctx context.Context, session *model.Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// Get returns nil, nil for unknown or expired sessions.
func (r *SessionRepository) Get(ctx context.Context, tokenHash string) (*model.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var session model.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", tokenHash, r.now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.now()).Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
