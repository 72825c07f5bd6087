package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"gopherblog/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UserChanges is a partial profile update; nil fields are left untouched.
type UserChanges struct {
	Username       *string
	Email          *string
	Age            *int
	ClearAge       bool
	AvatarFilename *string
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

// Update applies changes and reports how many records were modified: 0 when
// every field already held the requested value, 1 otherwise. A missing user
// yields ErrNotFound.
func (r *UserRepository) Update(ctx context.Context, id string, changes UserChanges) (int64, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, ErrNotFound
	}

	fields := changes.diff(current)
	if len(fields) == 0 {
		return 0, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("update user failed: %w", res.Error)
	}
	if res.RowsAffected > 1 {
		return 1, nil
	}
	return res.RowsAffected, nil
}

func (c UserChanges) diff(u *model.User) map[string]any {
	fields := map[string]any{}
	if c.Username != nil && *c.Username != u.Username {
		fields["username"] = *c.Username
	}
	if c.Email != nil && *c.Email != u.Email {
		fields["email"] = *c.Email
	}
	switch {
	case c.ClearAge:
		if u.Age != nil {
			fields["age"] = nil
		}
	case c.Age != nil:
		if u.Age == nil || *u.Age != *c.Age {
			fields["age"] = *c.Age
		}
	}
	if c.AvatarFilename != nil && (u.AvatarFilename == nil || *u.AvatarFilename != *c.AvatarFilename) {
		fields["avatar_filename"] = *c.AvatarFilename
	}
	return fields
}
