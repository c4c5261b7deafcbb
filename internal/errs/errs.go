// Package errs collects the error taxonomy shared across animctl's
// components: the avatar client, the action scheduler, and the template
// player all surface errors through these types so callers can distinguish
// connection failures from validation failures without string matching.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common conditions that callers check with errors.Is.
var (
	ErrConnectionClosed  = errors.New("animctl: connection closed")
	ErrAuthRejected      = errors.New("animctl: authentication rejected")
	ErrRequestTimeout    = errors.New("animctl: request timed out")
	ErrMissingParameter  = errors.New("animctl: missing required parameter")
	ErrTemplateNotFound  = errors.New("animctl: template not found")
	ErrUnknownEasing     = errors.New("animctl: unknown easing function")
	ErrControllerMissing = errors.New("animctl: controller not registered")
)

// ConnectionError is a transport-level failure to reach an external service
// (the avatar host, the chat source, the TTS backend). Affected components
// retry automatically; at startup it is fatal.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("animctl: connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError reports that the avatar host refused an auth token.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("animctl: authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthRejected
}

// ApiError mirrors the avatar host's structured error envelope
// (requestID + errorID inside data on failure).
type ApiError struct {
	ID      int
	Message string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("animctl: api error %d: %s", e.ID, e.Message)
}

// ResponseError reports a malformed or timed-out response.
type ResponseError struct {
	Reason string
	Err    error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("animctl: bad response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("animctl: bad response: %s", e.Reason)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// ValidationError reports a control-websocket frame that failed schema
// checking. The connection is kept open; the caller replies with
// {status:"error"}.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("animctl: validation failed for %q: %s", e.Field, e.Reason)
}

// TemplateError reports that template expansion failed (missing parameter,
// unknown name, malformed expression).
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("animctl: template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) || errors.Is(err, ErrConnectionClosed)
}

// IsCancelled reports whether err represents cooperative cancellation rather
// than a genuine failure — callers use this to decide whether a controller
// cycle's error deserves a log line.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
