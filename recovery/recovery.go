// Package recovery decides what the parser does with objects it cannot load.
package recovery

// Strategy is consulted for every object that fails to load.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	// ActionSkip drops the object silently.
	ActionSkip
	// ActionWarn drops the object and logs it.
	ActionWarn
)

type Context interface{ Done() <-chan struct{} }
