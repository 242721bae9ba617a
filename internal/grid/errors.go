package grid

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyValue     = errors.New("value cannot be empty")
	ErrNoSelection    = errors.New("no rows selected")
	ErrDragActive     = errors.New("drag-fill in progress")
	ErrAlreadyEditing = errors.New("cell is already being edited")
	ErrNotEditing     = errors.New("cell is not being edited")
	ErrUnknownRow     = errors.New("row is not loaded")
	ErrReadOnlyField  = errors.New("field is read-only")
	ErrNotDropdown    = errors.New("cell is not a dropdown")
	ErrNothingChecked = errors.New("nothing selected to apply")
)

// ServiceError wraps a backend failure with the operation that produced it.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func serviceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Op: op, Err: err}
}

// NoticeLevel grades user-visible messages.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// Notice is a transient message for the status line.
type Notice struct {
	Level NoticeLevel
	Text  string
}
