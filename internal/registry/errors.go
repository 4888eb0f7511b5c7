package registry

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists = errors.New("file already exists")
	ErrNotFound      = errors.New("file doesn't exist")
)

// Error reports a failed precondition on a named file. Kind is ErrAlreadyExists
// or ErrNotFound; At is set when the check was made at a logical timestamp.
type Error struct {
	Kind error
	Name string
	At   Timestamp
}

func (e *Error) Error() string {
	if t, ok := e.At.Get(); ok {
		return fmt.Sprintf("%v: %s at timestamp %d", e.Kind, e.Name, t)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Name)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func alreadyExists(name string, at Timestamp) error {
	return &Error{Kind: ErrAlreadyExists, Name: name, At: at}
}

func notFound(name string, at Timestamp) error {
	return &Error{Kind: ErrNotFound, Name: name, At: at}
}
