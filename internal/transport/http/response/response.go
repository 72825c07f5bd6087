package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherblog/internal/app"
)

const (
	CodeOK             = 0
	CodeBadRequest     = 40000
	CodeValidation     = 40001
	CodeUnauthorized   = 40100
	CodeLoginFailed    = 40101
	CodeForbidden      = 40300
	CodeNotFound       = 40400
	CodeEmailExists    = 40901
	CodeInternalServer = 50000
	CodeUnavailable    = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// FromError writes the response for a service error. Storage and unknown
// failures are recorded on the gin context for the request logger and
// reported to the client without detail.
func FromError(c *gin.Context, err error) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(c, http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, app.ErrValidation):
		Error(c, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, app.ErrAuthFailed):
		Error(c, http.StatusUnauthorized, CodeLoginFailed, app.ErrAuthFailed.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		Error(c, http.StatusUnauthorized, CodeUnauthorized, app.ErrUnauthenticated.Error())
	case errors.Is(err, app.ErrForbidden):
		Error(c, http.StatusForbidden, CodeForbidden, app.ErrForbidden.Error())
	case errors.Is(err, app.ErrNotFound):
		Error(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		Error(c, http.StatusConflict, CodeEmailExists, app.ErrEmailExists.Error())
	case errors.Is(err, app.ErrStorage):
		_ = c.Error(err)
		Error(c, http.StatusServiceUnavailable, CodeUnavailable, app.ErrStorage.Error())
	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, CodeInternalServer, "internal server error")
	}
}
