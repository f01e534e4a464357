package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"genmart/internal/middleware"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"code": 0, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "error": msg})
}

// handleError maps service errors onto the response envelope. Unexpected
// errors are attached to the context for the request logger and hidden
// from the client.
func handleError(c *gin.Context, err error) {
	if rej, isRej := service.IsRejection(err); isRej {
		fail(c, http.StatusBadRequest, rej.Reason)
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		fail(c, http.StatusBadRequest, service.Detail(err))
	case errors.Is(err, service.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "not allowed")
	case errors.Is(err, service.ErrNotFound):
		fail(c, http.StatusNotFound, service.Detail(err))
	case errors.Is(err, service.ErrConflict):
		fail(c, http.StatusConflict, service.Detail(err))
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}

// bindJSON decodes the body into req and answers 400 with the first
// validation problem. It returns false when the handler should stop.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, bindMessage(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		fail(c, http.StatusBadRequest, bindMessage(err))
		return false
	}
	return true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "email":
		return field + " must be a valid e-mail address"
	case "pkphone":
		return field + " must be a Pakistani mobile number like 03001234567"
	case "slug":
		return field + " may contain only lower-case letters, digits and dashes"
	}
	return field + " is invalid"
}

// actor returns the authenticated caller; routes using it sit behind Auth.
func actor(c *gin.Context) service.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// pageQuery is embedded in list requests.
type pageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=60"`
}

func (q pageQuery) page() service.Page {
	return service.Page{Page: q.Page, Limit: q.Limit}
}
