package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"gopherblog/internal/logging"
	"gopherblog/internal/model"
	"gopherblog/internal/repository"
)

var allowedAvatarExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
}

type FileStore interface {
	Save(ctx context.Context, data []byte, filename string) (string, error)
}

type ProfileService struct {
	users          UserStore
	files          FileStore
	maxAvatarBytes int
	logger         logging.Logger
}

type AvatarUpload struct {
	Filename string
	Data     []byte
}

// ProfileInput replaces the editable profile fields. A nil Age clears the
// stored age; a nil Avatar keeps the current picture.
type ProfileInput struct {
	Username string        `json:"username" validate:"required,min=2,max=20"`
	Email    string        `json:"email" validate:"required,email,max=128"`
	Age      *int          `json:"age" validate:"omitempty,gte=0,lte=150"`
	Avatar   *AvatarUpload `json:"-"`
}

func NewProfileService(users UserStore, files FileStore, maxAvatarBytes int, logger logging.Logger) *ProfileService {
	if maxAvatarBytes <= 0 {
		maxAvatarBytes = 2 << 20
	}
	return &ProfileService{users: users, files: files, maxAvatarBytes: maxAvatarBytes, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError("find user by id", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Update applies input to the profile of userID. changed is false when the
// stored profile already matched.
func (s *ProfileService) Update(ctx context.Context, userID string, input ProfileInput) (changed bool, user *model.User, err error) {
	if userID == "" {
		return false, nil, ErrUnauthenticated
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return false, nil, err
	}
	if input.Avatar != nil {
		if err := s.checkAvatar(input.Avatar); err != nil {
			return false, nil, err
		}
	}

	owner, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return false, nil, storageError("find user by email", err)
	}
	if owner != nil && owner.ID != userID {
		return false, nil, ErrEmailExists
	}

	changes := repository.UserChanges{
		Username: &input.Username,
		Email:    &input.Email,
		Age:      input.Age,
		ClearAge: input.Age == nil,
	}
	if input.Avatar != nil {
		stored, err := s.files.Save(ctx, input.Avatar.Data, avatarName(input.Avatar.Filename))
		if err != nil {
			return false, nil, storageError("save avatar", err)
		}
		changes.AvatarFilename = &stored
	}

	n, err := s.users.Update(ctx, userID, changes)
	if err != nil && changes.AvatarFilename != nil {
		// The upload is already stored; leave its name for cleanup.
		s.logger.Warn(ctx, "profile update failed after avatar upload",
			"user_id", userID, "avatar", *changes.AvatarFilename, "error", err)
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return false, nil, ErrUserNotFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		return false, nil, ErrEmailExists
	case err != nil:
		return false, nil, storageError("update user", err)
	}

	user, err = s.Get(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return n > 0, user, nil
}

func (s *ProfileService) checkAvatar(a *AvatarUpload) error {
	if !allowedAvatarExt[strings.ToLower(filepath.Ext(a.Filename))] {
		return &ValidationError{Field: "picture_filename", Message: "must be a png, jpg, jpeg, gif or svg image"}
	}
	if len(a.Data) == 0 {
		return &ValidationError{Field: "picture_filename", Message: "is empty"}
	}
	if len(a.Data) > s.maxAvatarBytes {
		return &ValidationError{Field: "picture_filename", Message: "is too large"}
	}
	return nil
}

// avatarName turns an uploaded file name into a safe, unique stored name.
func avatarName(original string) string {
	return uuid.NewString() + "_" + secureFilename(original)
}

func secureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	cleaned := strings.TrimLeft(b.String(), "._")
	if cleaned == "" || !strings.Contains(cleaned, ".") {
		return "avatar" + strings.ToLower(filepath.Ext(name))
	}
	return cleaned
}
