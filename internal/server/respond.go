package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/drydock/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// fail answers with the status err's kind maps to.
func fail(c *gin.Context, err error) {
	body := errorBody{Code: "INTERNAL", Message: err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		body.Code = e.Code
		body.Field = e.Field
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), body)
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, apperr.Validation("malformed request body: %v", err))
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		fail(c, apperr.Validation("%s must be a positive integer", name).WithField(name))
		return 0, false
	}
	return uint(v), true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		fail(c, apperr.Validation("%s must be an integer", name).WithField(name))
		return 0, false
	}
	return v, true
}

// uintQuery reads an optional unsigned query parameter.
func uintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		fail(c, apperr.Validation("%s must be an unsigned integer", name).WithField(name))
		return 0, false
	}
	return uint(v), true
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		fail(c, apperr.Validation("%s must be a YYYY-MM-DD date", name).WithField(name))
		return time.Time{}, false
	}
	return t, true
}

func ok(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

func created(c *gin.Context, v any) {
	c.JSON(http.StatusCreated, v)
}
