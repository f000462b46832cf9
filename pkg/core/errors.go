package core

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrReadOnly          = errors.New("store is in read-only mode")
	ErrClosed            = errors.New("store is closed")
	ErrEmptyKey          = errors.New("record has no key")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownIndex      = errors.New("unknown index")

	ErrCategoryInUse = errors.New("category is referenced by notes")
	ErrDuplicateName = errors.New("name already exists")

	ErrConfigurationRequired = errors.New("an API key is required, please add one in settings")
	ErrInvalidResponse       = errors.New("invalid response from task processor")
)

// OpError is the typed failure returned by data-layer operations.
// Error() is meant to be shown to the user as is.
type OpError struct {
	Op         string
	Collection string
	Key        string
	Msg        string
	Err        error
}

func (e *OpError) Error() string {
	var sb strings.Builder
	if e.Msg != "" {
		sb.WriteString(e.Msg)
	} else {
		sb.WriteString(e.Op)
		if e.Collection != "" {
			sb.WriteString(" ")
			sb.WriteString(e.Collection)
			if e.Key != "" {
				sb.WriteString("/")
				sb.WriteString(e.Key)
			}
		}
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// NotFound builds the error returned for a missing record.
func NotFound(collection, key string) error {
	return &OpError{Op: "get", Collection: collection, Key: key, Err: ErrNotFound}
}

// IsNotFound is shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
