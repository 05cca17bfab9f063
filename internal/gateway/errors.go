package gateway

import "fmt"

// ErrorKind categorizes a failed backend call.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"
	KindStatus  ErrorKind = "status"
	KindDecode  ErrorKind = "decode"
)

// Error is returned by every Client method that fails.
type Error struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Status     string
	// Detail is the backend's "detail" message, when the body carried one.
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Detail != "" {
			return fmt.Sprintf("gateway: %s: API error: %s: %s", e.Op, e.Status, e.Detail)
		}
		return fmt.Sprintf("gateway: %s: API error: %s", e.Op, e.Status)
	default:
		return fmt.Sprintf("gateway: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
