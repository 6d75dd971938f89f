package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy fails on the first broken object.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy drops broken objects and remembers why. Documents parsed
// this way may reference the dropped objects; the merge rejects those
// references when they are reachable.
type LenientStrategy struct {
	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s] object %d offset %d: %w", location.Component, location.ObjectNum, location.ByteOffset, err))
	return ActionWarn
}
