package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gopherblog/internal/app"
	"gopherblog/internal/logging"
	"gopherblog/internal/model"
	"gopherblog/internal/pkg/jwtutil"
	"gopherblog/internal/transport/http/response"
)

const (
	ContextUserKey         = "user"
	ContextSessionTokenKey = "session_token"
	contextSessionErrKey   = "session_error"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, bool, error)
	EndSession(ctx context.Context, token string) error
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Cookie describes the signed session cookie.
type Cookie struct {
	Name   string
	Secret string
	Secure bool
}

// Set writes the signed envelope for a freshly started session.
func (ck Cookie) Set(c *gin.Context, sessionToken string, ttl time.Duration) error {
	envelope, err := jwtutil.GenerateToken(ck.Secret, ttl, sessionToken)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, envelope, int(ttl.Seconds()), "/", "", ck.Secure, true)
	return nil
}

func (ck Cookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, "", -1, "/", "", ck.Secure, true)
}

// LoadSession resolves the session cookie into the current user. Requests
// without a valid session continue anonymously; storage failures are kept
// for RequireAuth so protected routes report them instead of a 401.
func LoadSession(ck Cookie, sessions SessionResolver, users UserLookup, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(ck.Name)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		token, err := jwtutil.ParseToken(ck.Secret, raw)
		if err != nil {
			ck.Clear(c)
			c.Next()
			return
		}

		userID, ok, err := sessions.Resolve(ctx, token)
		if err != nil {
			logger.Error(ctx, "resolve session failed", "error", err)
			c.Set(contextSessionErrKey, err)
			c.Next()
			return
		}
		if !ok {
			ck.Clear(c)
			c.Next()
			return
		}

		user, err := users.GetUserByID(ctx, userID)
		switch {
		case errors.Is(err, app.ErrUserNotFound):
			// The account behind the session is gone.
			if err := sessions.EndSession(ctx, token); err != nil {
				logger.Warn(ctx, "end orphaned session failed", "user_id", userID, "error", err)
			}
			ck.Clear(c)
		case err != nil:
			logger.Error(ctx, "load session user failed", "user_id", userID, "error", err)
			c.Set(contextSessionErrKey, err)
		default:
			c.Set(ContextUserKey, user)
			c.Set(ContextSessionTokenKey, token)
		}
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		if v, ok := c.Get(contextSessionErrKey); ok {
			if err, ok := v.(error); ok {
				response.FromError(c, err)
				c.Abort()
				return
			}
		}
		response.FromError(c, app.ErrUnauthenticated)
		c.Abort()
	}
}

func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func SessionToken(c *gin.Context) string {
	return c.GetString(ContextSessionTokenKey)
}

// ClientIP makes the caller address available to the audit trail.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(app.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
