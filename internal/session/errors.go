package session

import (
	"errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindStoreWrite
	KindStoreRead
	KindStoreDelete
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindStoreWrite:
		return "store-write"
	case KindStoreRead:
		return "store-read"
	case KindStoreDelete:
		return "store-delete"
	default:
		return "unknown"
	}
}

var (
	ErrBusy             = errors.New("this action is already in progress")
	ErrNotAuthenticated = errors.New("you need to be logged in")
)

// Error is an adapter failure. Its message is what ends up in the error slot.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind
	}
	return KindUnknown
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
