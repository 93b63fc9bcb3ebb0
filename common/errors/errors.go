package errors

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// With returns a copy of e carrying err as its cause. The sentinel values
// below are shared, so they are never mutated in place.
func (e *Error) With(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Code: e.Code, Message: message, Err: e.Err}
}

// Domain error taxonomy.
var (
	ErrValidation     = New(http.StatusBadRequest, "Validation error", nil)
	ErrNotFound       = New(http.StatusNotFound, "Not found", nil)
	ErrConflict       = New(http.StatusConflict, "Conflict", nil)
	ErrAmountMismatch = New(http.StatusBadRequest, "Payment amount does not match order total", nil)
	ErrGateway        = New(http.StatusBadGateway, "Payment gateway error", nil)
	ErrInternal       = New(http.StatusInternalServerError, "Internal server error", nil)
)

// Respond writes err as a JSON response. Unknown error types are reported
// as internal errors without leaking their detail.
func Respond(c *gin.Context, err error) {
	if appErr, ok := err.(*Error); ok {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": ErrInternal.Message})
}
