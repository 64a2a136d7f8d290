package nexus

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/xerrors"
)

// ErrUnexpectedResponse is returned when a successful response lacks a field the client needs.
var ErrUnexpectedResponse = xerrors.New("unexpected server response")

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the response status of err, 0 if err isn't an HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
