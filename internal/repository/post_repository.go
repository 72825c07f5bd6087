package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"gopherblog/internal/model"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post failed: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query post failed: %w", err)
	}
	return &post, nil
}

// UpdateContent rewrites title and content only; author_id is never touched.
// MySQL reports changed rows, so zero affected rows is not treated as missing.
func (r *PostRepository) UpdateContent(ctx context.Context, id, title, content string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).
		Updates(map[string]any{"title": title, "content": content}).Error
	if err != nil {
		return fmt.Errorf("update post failed: %w", err)
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if res.Error != nil {
		return fmt.Errorf("delete post failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListViews returns posts joined with their author, newest first. An empty
// authorID lists every author; limit <= 0 means no limit.
func (r *PostRepository) ListViews(ctx context.Context, authorID string, limit int) ([]model.PostView, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	q := r.db.WithContext(ctx).
		Table("posts").
		Select("posts.id, posts.title, posts.content, posts.author_id, users.username AS author_name, users.avatar_filename AS author_picture, posts.created_at").
		Joins("JOIN users ON users.id = posts.author_id").
		Order("posts.created_at DESC")
	if authorID != "" {
		q = q.Where("posts.author_id = ?", authorID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var views []model.PostView
	if err := q.Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("list posts failed: %w", err)
	}
	return views, nil
}
