package lojack

import "fmt"

// AuthenticationError reports a failed login, refresh, or rejected token.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lojack: %s: %v", e.Message, e.Err)
	}
	return "lojack: " + e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// AuthorizationError reports an authenticated but forbidden request.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return "lojack: " + e.Message }

// APIError reports a non-2xx response that is not an auth failure.
type APIError struct {
	Message    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lojack: %s (http %d)", e.Message, e.StatusCode)
	}
	return "lojack: " + e.Message
}

// ConnectionError reports a transport failure before any HTTP status
// was received.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lojack: %s: %v", e.Message, e.Err)
	}
	return "lojack: " + e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports a request that exceeded its deadline.
type TimeoutError struct {
	Message string
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lojack: %s: %v", e.Message, e.Err)
	}
	return "lojack: " + e.Message
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// DeviceNotFoundError reports a single-entity fetch for an unknown asset.
type DeviceNotFoundError struct {
	DeviceID string
}

func (e *DeviceNotFoundError) Error() string {
	return "lojack: device not found: " + e.DeviceID
}

// CommandError reports a rejected device command.
type CommandError struct {
	Command  string
	DeviceID string
	Reason   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("lojack: command %q failed for device %s", e.Command, e.DeviceID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InvalidParameterError reports client-side validation of a caller-supplied
// value, before any request is issued.
type InvalidParameterError struct {
	Parameter string
	Value     any
	Reason    string
}

func (e *InvalidParameterError) Error() string {
	msg := fmt.Sprintf("lojack: invalid parameter %q: %v", e.Parameter, e.Value)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}
