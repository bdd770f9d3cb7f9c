package table

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches any DecodeError via errors.Is.
	ErrDecode = errors.New("decode failed")
	// ErrEmptySource matches any EmptySourceError via errors.Is.
	ErrEmptySource = errors.New("empty source")
)

// DecodeError reports bytes that could not be parsed as the declared format.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// EmptySourceError reports a source whose decoded grid has no rows at all.
type EmptySourceError struct {
	Format Format
}

func (e *EmptySourceError) Error() string {
	return fmt.Sprintf("empty source: %s file has no rows", e.Format)
}

func (e *EmptySourceError) Unwrap() error { return ErrEmptySource }
