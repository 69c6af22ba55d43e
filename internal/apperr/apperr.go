// Package apperr defines the error taxonomy shared by every planning
// operation. Errors carry a kind, a stable code, and optionally the input
// field they refer to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an Error.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindBusiness   Kind = "business"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithField returns a copy of e referring to field.
func (e Error) WithField(field string) *Error {
	e.Field = field
	return &e
}

func NotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %v", entity, id),
	}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "INVALID_INPUT", Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: fmt.Sprintf(format, args...)}
}

func Business(format string, args ...any) *Error {
	return &Error{Kind: KindBusiness, Code: "UNSUPPORTED", Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err wraps an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindBusiness:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var validate = validator.New()

// Struct validates v's `validate` tags and reports the first violation as a
// Validation error naming the field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return Validation("%s failed %q", fe.Field(), fe.Tag()).WithField(fe.Field())
	}
	return Validation("%v", err)
}
