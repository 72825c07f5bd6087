package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gopherblog/internal/app"
	"gopherblog/internal/transport/http/response"
)

const avatarField = "picture_filename"

type ProfileHandler struct {
	profileService *app.ProfileService
	postService    *app.PostService
	maxAvatarBytes int64
}

func NewProfileHandler(profileService *app.ProfileService, postService *app.PostService, maxAvatarBytes int) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		postService:    postService,
		maxAvatarBytes: int64(maxAvatarBytes),
	}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.profileService.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, user)
}

// Update takes a multipart (or urlencoded) form: username, email, optional
// age and an optional picture_filename file.
func (h *ProfileHandler) Update(c *gin.Context) {
	input := app.ProfileInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
	}

	if raw := strings.TrimSpace(c.PostForm("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			response.FromError(c, &app.ValidationError{Field: "age", Message: "must be a whole number"})
			return
		}
		input.Age = &age
	}

	avatar, err := h.readAvatar(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid upload")
		return
	}
	input.Avatar = avatar

	changed, user, err := h.profileService.Update(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		response.FromError(c, err)
		return
	}

	message := "Your profile has been updated!"
	if !changed {
		message = "No changes detected in your profile."
	}
	response.OK(c, gin.H{
		"changed": changed,
		"message": message,
		"user":    user,
	})
}

func (h *ProfileHandler) Posts(c *gin.Context) {
	views, err := h.postService.ListByAuthor(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, views)
}

func (h *ProfileHandler) readAvatar(c *gin.Context) (*app.AvatarUpload, error) {
	header, err := c.FormFile(avatarField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if header.Filename == "" && header.Size == 0 {
		return nil, nil
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(f, h.maxAvatarBytes+1))
	if err != nil {
		return nil, err
	}
	return &app.AvatarUpload{Filename: header.Filename, Data: data}, nil
}
