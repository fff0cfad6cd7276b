package backend

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// TransportError covers everything that prevented a well-formed envelope from
// arriving: network failures, non-2xx statuses and bodies that are not JSON.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Unauthorized reports whether the backend rejected the session.
func (e *TransportError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// ApplicationError is a well-formed envelope with success set to false.
type ApplicationError struct {
	Op      string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return e.Op + ": request rejected"
	}
	return e.Op + ": " + e.Message
}

// ServerMessage returns the server-provided text, if any.
func ServerMessage(err error) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsUnauthorized reports whether err is a 401 TransportError.
func IsUnauthorized(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr) && tErr.Unauthorized()
}
