package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/volumetria/pipetcal/pkg/api"
)

var (
	// ErrDaemonNotRunning is returned when nothing listens on the daemon address
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the user does not have permission to open the daemon socket
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = errors.New("404 not found")
)

// APIError is a non-2xx answer of the daemon.
type APIError struct {
	StatusCode int
	Body       api.ErrorResponse
}

func (e *APIError) Error() string {
	msg := e.Body.Error
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Body.Campo != "" {
		msg += " (" + e.Body.Campo + ")"
	}
	if e.Body.Detalle != "" {
		msg += ": " + e.Body.Detalle
	}
	return fmt.Sprintf("got %d: %s", e.StatusCode, msg)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
