// ABOUTME: Error taxonomy for webhook calls
// ABOUTME: Sentinels for errors.Is plus RequestError carrying the user-facing message

package webhook

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by Client wraps one of them.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRequestFailed        = errors.New("request failed")
	ErrNotFound             = errors.New("not found")
)

// RequestError describes a failed webhook call. Message is safe to show to
// the user; Body holds the raw response text when there was one.
type RequestError struct {
	Op      string
	Status  int
	Message string
	Body    string

	Kind error // one of the sentinels
	Err  error // underlying cause, if any
}

func (e *RequestError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause.
func (e *RequestError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// LogString renders the error with its operation and status for logs.
func (e *RequestError) LogString() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %s: %v", e.Op, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// UserMessage returns the text to show for err, or fallback when err carries
// no user-facing message.
func UserMessage(err error, fallback string) string {
	var re *RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}
