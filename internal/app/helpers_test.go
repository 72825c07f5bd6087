package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gopherblog/internal/logging"
	"gopherblog/internal/model"
	"gopherblog/internal/platform/sqlite"
	"gopherblog/internal/repository"
)

var errDown = errors.New("connection refused")

type testEnv struct {
	db       *gorm.DB
	users    *repository.UserRepository
	posts    *repository.PostRepository
	sessions *repository.SessionRepository
	events   *recordingPublisher
	hasher   *PasswordHasher
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:       db,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		sessions: repository.NewSessionRepository(db),
		events:   &recordingPublisher{},
		hasher:   NewPasswordHasher(bcrypt.MinCost),
	}
	env.auth, err = NewAuthService(env.users, env.hasher, env.events, logging.Discard())
	require.NoError(t, err)
	return env
}

func (e *testEnv) register(t *testing.T, username, email, password string) *model.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Username: username, Email: email, Password: password, ConfirmPassword: password,
	})
	require.NoError(t, err)
	return u
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e model.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func (p *recordingPublisher) last() model.AuthEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// brokenUserStore fails every call as if the database were unreachable.
type brokenUserStore struct{}

func (brokenUserStore) Create(context.Context, *model.User) error { return errDown }
func (brokenUserStore) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, errDown
}
func (brokenUserStore) GetByID(context.Context, string) (*model.User, error) { return nil, errDown }
func (brokenUserStore) Update(context.Context, string, repository.UserChanges) (int64, error) {
	return 0, errDown
}

type fakeFileStore struct {
	saved map[string][]byte
	err   error
}

func (f *fakeFileStore) Save(_ context.Context, data []byte, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[filename] = data
	return filename, nil
}
