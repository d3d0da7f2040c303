package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindNetwork covers connection failures, timeouts and cancellation.
	KindNetwork Kind = iota + 1
	// KindDecode means the response body was not the expected JSON.
	KindDecode
	// KindStatus means the API answered with a non-2xx status or success:false.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindStatus:
		return "status"
	}
	return "unknown"
}

// ErrUnsuccessful is wrapped when the API returns success:false.
var ErrUnsuccessful = errors.New("api reported failure")

// Error is returned by every Client call.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a transport Error of kind k.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}
