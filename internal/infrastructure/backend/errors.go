package backend

import (
	"errors"
	"fmt"
)

// NetworkError a backend request failed at transport level or answered with a non-2xx status
type NetworkError struct {
	Op         string // request method
	URL        string
	StatusCode int    // zero when no response was received
	Body       string // truncated response body for non-2xx answers
	Err        error
}

func (ne *NetworkError) Error() string {
	if ne.StatusCode != 0 && (ne.StatusCode < 200 || ne.StatusCode > 299) {
		if ne.Body != "" {
			return fmt.Sprintf("%s %s: status %d: %s", ne.Op, ne.URL, ne.StatusCode, ne.Body)
		}
		return fmt.Sprintf("%s %s: status %d", ne.Op, ne.URL, ne.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", ne.Op, ne.URL, ne.Err)
}

func (ne *NetworkError) Unwrap() error {
	return ne.Err
}

// IsNetworkError reports whether err is or wraps a *NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.StatusCode
	}
	return 0
}
