package fallback

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable is matched by errors returned when every candidate
// and the terminal provider have been exhausted.
var ErrServiceUnavailable = errors.New("AI services are currently unavailable")

// UnavailableError reports exhaustion of the whole fallback chain.
type UnavailableError struct {
	Task  string
	Cause Class
	Err   error
}

func (e *UnavailableError) Error() string {
	reason := "quota or model mismatch"
	switch e.Cause {
	case Quota:
		reason = "quota"
	case NotFound:
		reason = "model mismatch"
	case Timeout:
		reason = "timeout"
	}
	msg := fmt.Sprintf("%s (%s). Please check your API key settings", ErrServiceUnavailable.Error(), reason)
	if e.Task != "" {
		msg = e.Task + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ParseError marks a response that was received but could not be decoded.
// It is classified Other.
type ParseError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s/%s returned an unusable response: %v", e.Provider, e.Model, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
