// Package apperr defines the error kinds core operations return and maps
// them to HTTP responses at the boundary.
package apperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Unauthorized
	Forbidden
	BadRequest
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case BadRequest:
		return "bad request"
	case Conflict:
		return "conflict"
	default:
		return "internal error"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

var (
	ErrNotFound     = New(NotFound, "")
	ErrUnauthorized = New(Unauthorized, "")
	ErrForbidden    = New(Forbidden, "")
)

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// holds for every forbidden error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func BadRequestf(msg string) *Error { return New(BadRequest, msg) }

// KindOf reports the kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Respond writes err as {"error": msg}. Internal failures are logged and
// answered without detail.
func Respond(c *gin.Context, err error) {
	kind := KindOf(err)
	if kind == Internal {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(kind.Status(), gin.H{"error": kind.String()})
		return
	}

	msg := kind.String()
	var e *Error
	if errors.As(err, &e) && (e.Kind == BadRequest || e.Kind == Conflict) && e.Msg != "" {
		msg = msg + ": " + e.Msg
	}
	c.AbortWithStatusJSON(kind.Status(), gin.H{"error": msg})
}
