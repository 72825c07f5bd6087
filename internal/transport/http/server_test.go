package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gopherblog/internal/app"
	"gopherblog/internal/config"
	"gopherblog/internal/logging"
	"gopherblog/internal/model"
	"gopherblog/internal/platform/sqlite"
	"gopherblog/internal/platform/storage"
	"gopherblog/internal/repository"
	"gopherblog/internal/transport/http/handler"
	"gopherblog/internal/transport/http/response"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	events *repository.AuthEventRepository
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{
		App: config.AppConfig{Name: "gopherblog", Env: "test"},
		Session: config.SessionConfig{
			Backend:    config.SessionBackendDatabase,
			TTLMinutes: 60,
			CookieName: "blog_session",
			Secret:     "test-secret",
		},
		Storage: config.StorageConfig{
			Backend:        config.StorageBackendLocal,
			UploadDir:      t.TempDir(),
			MaxAvatarBytes: 1024,
		},
	}

	users := repository.NewUserRepository(db)
	events := repository.NewAuthEventRepository(db)
	files, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	require.NoError(t, err)

	auth, err := app.NewAuthService(users, app.NewPasswordHasher(bcrypt.MinCost), events, logging.Discard())
	require.NoError(t, err)
	svc := app.Services{
		Auth:     auth,
		Sessions: app.NewSessionService(repository.NewSessionRepository(db), cfg.SessionTTL()),
		Posts:    app.NewPostService(repository.NewPostRepository(db)),
		Profiles: app.NewProfileService(users, files, cfg.Storage.MaxAvatarBytes, logging.Discard()),
	}
	health := handler.NewHealthHandler(cfg.App.Name, cfg.App.Env, time.Now(), handler.Dependency{
		Name: "sqlite",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	return &testServer{
		t:      t,
		engine: NewEngine(cfg, svc, health, logging.Discard()),
		events: events,
		cfg:    cfg,
	}
}

type reply struct {
	status  int
	body    response.APIResponse
	raw     []byte
	cookies []*http.Cookie
}

func (s *testServer) do(req *http.Request, cookie *http.Cookie) reply {
	s.t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	r := reply{status: rec.Code, raw: rec.Body.Bytes(), cookies: rec.Result().Cookies()}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(r.raw, &r.body))
	}
	return r
}

func (s *testServer) json(method, path string, payload any, cookie *http.Cookie) reply {
	s.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(s.t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, cookie)
}

func (s *testServer) register(username, email, password string) {
	s.t.Helper()
	r := s.json(http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": username, "email": email, "password": password, "confirm_password": password,
	}, nil)
	require.Equal(s.t, http.StatusCreated, r.status, string(r.raw))
}

func (s *testServer) login(email, password string) *http.Cookie {
	s.t.Helper()
	r := s.json(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": password}, nil)
	require.Equal(s.t, http.StatusOK, r.status, string(r.raw))
	for _, c := range r.cookies {
		if c.Name == s.cfg.Session.CookieName {
			return c
		}
	}
	s.t.Fatal("login did not set the session cookie")
	return nil
}

func decodeData[T any](t *testing.T, r reply) T {
	t.Helper()
	var out struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(r.raw, &out))
	return out.Data
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com", "secret123")

	dup := s.json(http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": "alice2", "email": "ALICE@example.com", "password": "x", "confirm_password": "x",
	}, nil)
	assert.Equal(t, http.StatusConflict, dup.status)
	assert.Equal(t, response.CodeEmailExists, dup.body.Code)

	mismatch := s.json(http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": "carol", "email": "carol@example.com", "password": "a", "confirm_password": "b",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, mismatch.status)

	badPassword := s.json(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "alice@example.com", "password": "wrong"}, nil)
	noAccount := s.json(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "secret123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, badPassword.status)
	assert.Equal(t, badPassword.status, noAccount.status)
	assert.Equal(t, badPassword.body, noAccount.body)
	assert.Equal(t, "login failed", badPassword.body.Message)
	assert.Empty(t, badPassword.cookies)

	cookie := s.login("alice@example.com", "secret123")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	me := s.json(http.MethodGet, "/api/v1/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, me.status)
	user := decodeData[model.User](t, me)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotContains(t, string(me.raw), "password")

	events, err := s.events.ListByEmail(context.Background(), "alice@example.com", 0)
	require.NoError(t, err)
	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{model.AuthEventRegister, model.AuthEventLoginFailed, model.AuthEventLoginSucceeded}, kinds)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com", "secret123")
	cookie := s.login("alice@example.com", "secret123")

	out := s.json(http.MethodPost, "/api/v1/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, out.status)
	require.NotEmpty(t, out.cookies)
	assert.True(t, out.cookies[0].MaxAge < 0, "cookie cleared")

	// The signed envelope is still valid, but the session behind it is gone.
	me := s.json(http.MethodGet, "/api/v1/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, me.status)

	again := s.json(http.MethodPost, "/api/v1/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, again.status)
}

func TestTamperedCookie(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com", "secret123")
	cookie := s.login("alice@example.com", "secret123")

	forged := *cookie
	forged.Value = cookie.Value[:len(cookie.Value)-2] + "xx"
	me := s.json(http.MethodGet, "/api/v1/auth/me", nil, &forged)
	assert.Equal(t, http.StatusUnauthorized, me.status)
	assert.Equal(t, response.CodeUnauthorized, me.body.Code)

	junk := s.json(http.MethodGet, "/api/v1/auth/me", nil, &http.Cookie{Name: "blog_session", Value: "not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, junk.status)
}

func TestPostOwnership(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com", "secret123")
	s.register("bob", "bob@example.com", "hunter22")
	alice := s.login("alice@example.com", "secret123")
	bob := s.login("bob@example.com", "hunter22")

	anon := s.json(http.MethodPost, "/api/v1/posts", gin.H{"title": "t", "content": "c"}, nil)
	assert.Equal(t, http.StatusUnauthorized, anon.status)

	created := s.json(http.MethodPost, "/api/v1/posts", gin.H{
		"title": "P", "content": "by alice", "author_id": "someone-else",
	}, alice)
	require.Equal(t, http.StatusCreated, created.status, string(created.raw))
	post := decodeData[model.Post](t, created)
	aliceUser := decodeData[model.User](t, s.json(http.MethodGet, "/api/v1/auth/me", nil, alice))
	assert.Equal(t, aliceUser.ID, post.AuthorID)

	path := "/api/v1/posts/" + post.ID
	upd := s.json(http.MethodPut, path, gin.H{"title": "hijack", "content": "x"}, bob)
	assert.Equal(t, http.StatusForbidden, upd.status)
	del := s.json(http.MethodDelete, path, nil, bob)
	assert.Equal(t, http.StatusForbidden, del.status)

	got := s.json(http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, got.status)
	assert.Equal(t, "P", decodeData[model.Post](t, got).Title)

	upd = s.json(http.MethodPut, path, gin.H{"title": "P2", "content": "edited"}, alice)
	require.Equal(t, http.StatusOK, upd.status)
	assert.Equal(t, "P2", decodeData[model.Post](t, upd).Title)

	invalid := s.json(http.MethodPut, path, gin.H{"title": "", "content": "edited"}, alice)
	assert.Equal(t, http.StatusBadRequest, invalid.status)

	list := s.json(http.MethodGet, "/api/v1/posts?recent=5", nil, nil)
	require.Equal(t, http.StatusOK, list.status)
	views := decodeData[[]model.PostView](t, list)
	require.Len(t, views, 1)
	assert.Equal(t, "alice", views[0].AuthorName)

	bad := s.json(http.MethodGet, "/api/v1/posts?recent=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, bad.status)

	mine := s.json(http.MethodGet, "/api/v1/profile/posts", nil, bob)
	require.Equal(t, http.StatusOK, mine.status)
	assert.Empty(t, decodeData[[]model.PostView](t, mine))

	del = s.json(http.MethodDelete, path, nil, alice)
	require.Equal(t, http.StatusOK, del.status)
	gone := s.json(http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, gone.status)
	assert.Equal(t, response.CodeNotFound, gone.body.Code)
}

func multipartProfile(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("picture_filename", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestProfileUpdate(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com", "secret123")
	s.register("bob", "bob@example.com", "hunter22")
	alice := s.login("alice@example.com", "secret123")

	same := s.do(multipartProfile(t, map[string]string{"username": "alice", "email": "alice@example.com"}, "", nil), alice)
	require.Equal(t, http.StatusOK, same.status, string(same.raw))
	type profileReply struct {
		Changed bool       `json:"changed"`
		Message string     `json:"message"`
		User    model.User `json:"user"`
	}
	pr := decodeData[profileReply](t, same)
	assert.False(t, pr.Changed)
	assert.Equal(t, "No changes detected in your profile.", pr.Message)

	img := []byte("\x89PNG fake image")
	upd := s.do(multipartProfile(t, map[string]string{
		"username": "Alice", "email": "alice@example.com", "age": "31",
	}, "me.png", img), alice)
	require.Equal(t, http.StatusOK, upd.status, string(upd.raw))
	pr = decodeData[profileReply](t, upd)
	assert.True(t, pr.Changed)
	require.NotNil(t, pr.User.Age)
	assert.Equal(t, 31, *pr.User.Age)
	require.NotNil(t, pr.User.AvatarFilename)

	pic := s.do(httptest.NewRequest(http.MethodGet, "/author_profile_pic/"+*pr.User.AvatarFilename, nil), nil)
	assert.Equal(t, http.StatusOK, pic.status)
	assert.Equal(t, img, pic.raw)

	taken := s.do(multipartProfile(t, map[string]string{"username": "Alice", "email": "bob@example.com"}, "", nil), alice)
	assert.Equal(t, http.StatusConflict, taken.status)

	badAge := s.do(multipartProfile(t, map[string]string{"username": "Alice", "email": "alice@example.com", "age": "old"}, "", nil), alice)
	assert.Equal(t, http.StatusBadRequest, badAge.status)

	badExt := s.do(multipartProfile(t, map[string]string{"username": "Alice", "email": "alice@example.com"}, "x.exe", []byte("MZ")), alice)
	assert.Equal(t, http.StatusBadRequest, badExt.status)

	tooBig := s.do(multipartProfile(t, map[string]string{"username": "Alice", "email": "alice@example.com"}, "big.png", bytes.Repeat([]byte("a"), 2048)), alice)
	assert.Equal(t, http.StatusBadRequest, tooBig.status)

	anon := s.do(multipartProfile(t, map[string]string{"username": "x", "email": "x@example.com"}, "", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, anon.status)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	r := s.json(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, r.status)
	assert.Contains(t, string(r.raw), `"sqlite":{"ok":true}`)
}
