package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherblog/internal/app"
	"gopherblog/internal/logging"
	"gopherblog/internal/transport/http/middleware"
	"gopherblog/internal/transport/http/response"
)

type AuthHandler struct {
	authService    *app.AuthService
	sessionService *app.SessionService
	cookie         middleware.Cookie
	logger         logging.Logger
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAuthHandler(authService *app.AuthService, sessionService *app.SessionService, cookie middleware.Cookie, logger logging.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		cookie:         cookie,
		logger:         logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req app.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}

	// Never carry a pre-login session over to the authenticated user.
	if old := middleware.SessionToken(c); old != "" {
		if err := h.sessionService.EndSession(ctx, old); err != nil {
			h.logger.Warn(ctx, "end previous session failed", "error", err)
		}
	}

	token, err := h.sessionService.StartSession(ctx, user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.cookie.Set(c, token, h.sessionService.TTL()); err != nil {
		_ = h.sessionService.EndSession(ctx, token)
		response.FromError(c, err)
		return
	}

	response.OK(c, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.sessionService.EndSession(ctx, middleware.SessionToken(c)); err != nil {
		response.FromError(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)
	h.authService.RecordLogout(ctx, user)
	h.cookie.Clear(c)

	response.OK(c, nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.FromError(c, app.ErrUnauthenticated)
		return
	}
	response.OK(c, user)
}
