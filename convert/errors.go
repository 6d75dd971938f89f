package convert

import (
	"errors"
	"fmt"
)

// ErrNoPages is returned when partial success is allowed but no image could
// be turned into a page.
var ErrNoPages = errors.New("no page could be rendered")

// Stages at which a page can fail.
const (
	StageRead   = "read"
	StageDecode = "decode"
	StageRender = "render"
)

// PageError reports the failure of one input image.
type PageError struct {
	Index int // position in the input, 0-based
	Name  string
	Stage string
	Err   error
}

func (e *PageError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("image #%d (%s): %s: %v", e.Index+1, e.Name, e.Stage, e.Err)
	}
	return fmt.Sprintf("image #%d: %s: %v", e.Index+1, e.Stage, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// ValidationError wraps a rejection by the output validator.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return "output validation failed: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }
