package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gopherblog/internal/app"
	"gopherblog/internal/transport/http/middleware"
	"gopherblog/internal/transport/http/response"
)

type PostHandler struct {
	postService *app.PostService
}

func NewPostHandler(postService *app.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// List returns every post, or only the newest ones with ?recent=N.
func (h *PostHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	raw, recent := c.GetQuery("recent")
	if !recent {
		views, err := h.postService.ListAll(ctx)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.OK(c, views)
		return
	}

	limit := 0
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "recent must be a non-negative integer")
			return
		}
		limit = n
	}
	views, err := h.postService.ListRecent(ctx, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, views)
}

func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.postService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, post)
}

func (h *PostHandler) Create(c *gin.Context) {
	var req app.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	post, err := h.postService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var req app.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	post, err := h.postService.Update(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.postService.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, nil)
}

func currentUserID(c *gin.Context) string {
	if user, ok := middleware.CurrentUser(c); ok {
		return user.ID
	}
	return ""
}
