// Package errors defines common error types used throughout the Reddit
// OAuth client.
package errors

import (
	"fmt"
	"time"
)

// ConfigError indicates a problem with credentials or client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// BindError indicates the local callback listener could not be bound,
// usually because the redirect port is already in use. The authorization
// attempt is aborted; it is never retried automatically.
type BindError struct {
	// Addr is the loopback address the listener tried to bind
	Addr string
	// Err contains the underlying error from the network stack
	Err error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind error on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// BrowserError indicates the system browser could not be launched for the
// installed-app consent step.
type BrowserError struct {
	// Err contains the underlying error if available
	Err error
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("browser error: failed to open authorization page: %v", e.Err)
}

func (e *BrowserError) Unwrap() error { return e.Err }

// RemoteError indicates the remote authorization server reported a failure
// through the redirect, typically because the user denied consent. The
// caller may start a new authorization attempt.
type RemoteError struct {
	// Code is the error code from the redirect query, e.g. "access_denied"
	Code string
	// Description is the optional human-readable description, if provided
	Description string
}

func (e *RemoteError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("remote error: authorization rejected: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("remote error: authorization rejected: %s", e.Code)
}

// StateError indicates the redirect did not carry the state value generated
// for this authorization attempt. This is treated as a security failure and
// the attempt is aborted, never silently retried. The received value is
// deliberately not included in the message.
type StateError struct {
	// Missing is true when the redirect carried no state parameter at all
	Missing bool
}

func (e *StateError) Error() string {
	if e.Missing {
		return "state error: redirect carried no state parameter"
	}
	return "state error: redirect state did not match this authorization attempt"
}

// MissingTokenError indicates the token endpoint answered without an
// access_token field.
type MissingTokenError struct {
	// Grant is the grant_type of the exchange that failed
	Grant string
}

func (e *MissingTokenError) Error() string {
	if e.Grant != "" {
		return fmt.Sprintf("token error: no access_token in %s grant response", e.Grant)
	}
	return "token error: no access_token in response"
}

// IncompleteTokenError indicates the authorization-code exchange answered
// without one or more of the fields a permanent grant must carry.
type IncompleteTokenError struct {
	// Missing lists the absent response fields
	Missing []string
}

func (e *IncompleteTokenError) Error() string {
	return fmt.Sprintf("token error: incomplete token response, missing %v", e.Missing)
}

// RequestError indicates a transport-level failure while talking to the
// remote service. Retry policy is the caller's decision.
type RequestError struct {
	// Operation is the name of the exchange that failed
	Operation string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("request error: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// TimeoutError indicates the wait for the browser-side consent expired
// before the callback delivered an outcome.
type TimeoutError struct {
	// After is how long the orchestrator waited
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: no authorization callback within %s", e.After)
}
