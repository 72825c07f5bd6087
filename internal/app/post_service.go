package app

import (
	"context"
	"errors"
	"strings"

	"gopherblog/internal/model"
	"gopherblog/internal/repository"
)

const (
	DefaultRecentPosts = 5
	maxListedPosts     = 100
)

type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	UpdateContent(ctx context.Context, id, title, content string) error
	Delete(ctx context.Context, id string) error
	ListViews(ctx context.Context, authorID string, limit int) ([]model.PostView, error)
}

type PostService struct {
	posts PostStore
}

type PostInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required,max=100000"`
}

func NewPostService(posts PostStore) *PostService {
	return &PostService{posts: posts}
}

// Create stores a post authored by userID, the identity of the current
// session.
func (s *PostService) Create(ctx context.Context, userID string, input PostInput) (*model.Post, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	input, err := cleanPostInput(input)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:    input.Title,
		Content:  input.Content,
		AuthorID: userID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, storageError("create post", err)
	}
	return post, nil
}

func (s *PostService) Get(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, storageError("find post", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *PostService) Update(ctx context.Context, userID, postID string, input PostInput) (*model.Post, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	input, err = cleanPostInput(input)
	if err != nil {
		return nil, err
	}

	if err := s.posts.UpdateContent(ctx, post.ID, input.Title, input.Content); err != nil {
		return nil, storageError("update post", err)
	}
	post.Title = input.Title
	post.Content = input.Content
	return post, nil
}

func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return storageError("delete post", err)
	}
	return nil
}

// ListRecent returns the newest posts for the home page.
func (s *PostService) ListRecent(ctx context.Context, limit int) ([]model.PostView, error) {
	if limit <= 0 {
		limit = DefaultRecentPosts
	}
	if limit > maxListedPosts {
		limit = maxListedPosts
	}
	return s.list(ctx, "", limit)
}

func (s *PostService) ListAll(ctx context.Context) ([]model.PostView, error) {
	return s.list(ctx, "", 0)
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID string) ([]model.PostView, error) {
	if authorID == "" {
		return nil, ErrUnauthenticated
	}
	return s.list(ctx, authorID, 0)
}

func (s *PostService) list(ctx context.Context, authorID string, limit int) ([]model.PostView, error) {
	views, err := s.posts.ListViews(ctx, authorID, limit)
	if err != nil {
		return nil, storageError("list posts", err)
	}
	if views == nil {
		views = []model.PostView{}
	}
	return views, nil
}

// ownedPost loads postID and checks that userID may mutate it. Not found is
// reported before ownership.
func (s *PostService) ownedPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !CanModify(userID, post) {
		return nil, ErrForbidden
	}
	return post, nil
}

func cleanPostInput(input PostInput) (PostInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Content = strings.TrimSpace(input.Content)
	if err := validateStruct(input); err != nil {
		return input, err
	}
	return input, nil
}
