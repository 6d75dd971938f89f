package merge

import (
	"errors"
	"fmt"

	"github.com/wudi/img2pdf/ir/raw"
)

// ErrEmptyInput is returned when there is nothing to merge.
var ErrEmptyInput = errors.New("merge: no input documents")

// ErrNoRoot is returned by Verify when the trailer has no Root entry.
var ErrNoRoot = errors.New("merge: trailer has no Root")

// ParseError reports an input that could not be parsed. Index is the
// position of the input in the caller's slice.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("merge: parse input %d: %v", e.Index, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// DanglingReferenceError reports a reference with no target. Source is the
// input index whose object From holds the reference, or -1 when the check
// ran over the merged document.
type DanglingReferenceError struct {
	Source int
	From   raw.ObjectRef
	Target raw.ObjectRef
}

func (e *DanglingReferenceError) Error() string {
	if e.Source < 0 {
		return fmt.Sprintf("merge: object %v of merged document references missing object %v", e.From, e.Target)
	}
	return fmt.Sprintf("merge: object %v of input %d references missing object %v", e.From, e.Source, e.Target)
}

// SerializationError wraps a failure to encode the merged document.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return "merge: serialize: " + e.Err.Error() }
func (e *SerializationError) Unwrap() error { return e.Err }
