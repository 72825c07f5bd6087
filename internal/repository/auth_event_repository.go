package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gopherblog/internal/model"
)

type AuthEventRepository struct {
	db *gorm.DB
}

func NewAuthEventRepository(db *gorm.DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

func (r *AuthEventRepository) Create(ctx context.Context, event *model.AuthEvent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create auth event failed: %w", err)
	}
	return nil
}

// Publish lets the repository stand in for the queue publisher when no
// broker is configured.
func (r *AuthEventRepository) Publish(ctx context.Context, event model.AuthEvent) error {
	return r.Create(ctx, &event)
}

func (r *AuthEventRepository) ListByEmail(ctx context.Context, email string, limit int) ([]model.AuthEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var events []model.AuthEvent
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("id ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list auth events failed: %w", err)
	}
	return events, nil
}
