package app

import (
	"context"
	"errors"
	"strings"

	"gopherblog/internal/logging"
	"gopherblog/internal/model"
	"gopherblog/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, changes repository.UserChanges) (int64, error)
}

type AuthService struct {
	users     UserStore
	hasher    *PasswordHasher
	events    AuthEventPublisher
	logger    logging.Logger
	dummyHash string
}

type RegisterInput struct {
	Username        string `json:"username" validate:"required,max=64"`
	Email           string `json:"email" validate:"required,email,max=128"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func NewAuthService(users UserStore, hasher *PasswordHasher, events AuthEventPublisher, logger logging.Logger) (*AuthService, error) {
	// Compared against when the account does not exist, so both failure
	// paths pay for one bcrypt comparison.
	dummy, err := hasher.Hash("gopherblog-no-such-account")
	if err != nil {
		return nil, err
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		events:    events,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)

	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	existing, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, storageError("find user by email", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration won the race past the pre-check.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailExists
		}
		return nil, storageError("create user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	publishEvent(ctx, s.events, s.logger, model.AuthEvent{
		Kind:   model.AuthEventRegister,
		UserID: user.ID,
		Email:  user.Email,
	})
	return user, nil
}

// Authenticate checks email and password. Unknown accounts and wrong
// passwords both return ErrAuthFailed; the distinction only reaches the log
// and the audit trail.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "is required"}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storageError("find user by email", err)
	}
	if user == nil {
		s.hasher.Verify(password, s.dummyHash)
		s.loginFailed(ctx, email, "", model.AuthReasonNoSuchAccount)
		return nil, ErrAuthFailed
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.loginFailed(ctx, email, user.ID, model.AuthReasonBadCredentials)
		return nil, ErrAuthFailed
	}

	publishEvent(ctx, s.events, s.logger, model.AuthEvent{
		Kind:   model.AuthEventLoginSucceeded,
		UserID: user.ID,
		Email:  user.Email,
	})
	return user, nil
}

func (s *AuthService) RecordLogout(ctx context.Context, user *model.User) {
	if user == nil {
		return
	}
	publishEvent(ctx, s.events, s.logger, model.AuthEvent{
		Kind:   model.AuthEventLogout,
		UserID: user.ID,
		Email:  user.Email,
	})
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("find user by id", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, userID, reason string) {
	s.logger.Warn(ctx, "login failed", "email", email, "reason", reason)
	publishEvent(ctx, s.events, s.logger, model.AuthEvent{
		Kind:   model.AuthEventLoginFailed,
		UserID: userID,
		Email:  email,
		Reason: reason,
	})
}
