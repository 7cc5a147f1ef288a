package allocator

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind classifies a rejected Allocate or Free call.
type Kind int

const (
	KindRequestTooSmall Kind = iota + 1
	KindRequestTooLarge
	KindOutOfMemory
	KindNullFree
	KindOutOfArenaFree
	KindUnknownPointerFree
	KindDoubleFree
)

var (
	ErrRequestTooSmall    = errors.New("request too small")
	ErrRequestTooLarge    = errors.New("request too large")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrNullFree           = errors.New("free of nil pointer")
	ErrOutOfArenaFree     = errors.New("free of pointer outside arena")
	ErrUnknownPointerFree = errors.New("free of unknown pointer")
	ErrDoubleFree         = errors.New("double free")
	ErrInvalidCapacity    = errors.New("invalid arena capacity")
	ErrCorrupt            = errors.New("corrupt block layout")
	ErrInvalidPointer     = errors.New("invalid pointer")
	ErrPayloadTooLarge    = errors.New("payload larger than block")
	ErrUnmarshal          = errors.New("unmarshal error")
	ErrMarshal            = errors.New("marshal error")
)

var kindErrors = map[Kind]error{
	KindRequestTooSmall:    ErrRequestTooSmall,
	KindRequestTooLarge:    ErrRequestTooLarge,
	KindOutOfMemory:        ErrOutOfMemory,
	KindNullFree:           ErrNullFree,
	KindOutOfArenaFree:     ErrOutOfArenaFree,
	KindUnknownPointerFree: ErrUnknownPointerFree,
	KindDoubleFree:         ErrDoubleFree,
}

func (k Kind) String() string {
	switch k {
	case KindRequestTooSmall:
		return "RequestTooSmall"
	case KindRequestTooLarge:
		return "RequestTooLarge"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindNullFree:
		return "NullFree"
	case KindOutOfArenaFree:
		return "OutOfArenaFree"
	case KindUnknownPointerFree:
		return "UnknownPointerFree"
	case KindDoubleFree:
		return "DoubleFree"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error describes a rejected call together with the location it came from.
// Request and Limit are set for allocation failures, Ptr for free failures.
type Error struct {
	Kind    Kind
	Loc     Location
	Request int
	Limit   int
	Ptr     Pointer
}

func (e *Error) Error() string {
	return fmt.Sprintf("Error at line %d in file %s: %s", e.Loc.Line, e.Loc.File, e.message())
}

func (e *Error) Unwrap() error { return kindErrors[e.Kind] }
func (e *Error) Cause() error  { return kindErrors[e.Kind] }

func (e *Error) message() string {
	switch e.Kind {
	case KindRequestTooSmall:
		return fmt.Sprintf("Request is too small! Minimum request: %d; your request: %d", e.Limit, e.Request)
	case KindRequestTooLarge:
		return fmt.Sprintf("Request is too large! Maximum request: %d; your request: %d", e.Limit, e.Request)
	case KindOutOfMemory:
		return "Out of memory!"
	case KindNullFree:
		return "Cannot free a NULL pointer"
	case KindOutOfArenaFree:
		return "Argument is not an address within the heap"
	case KindDoubleFree:
		return "Pointer was already freed!"
	case KindUnknownPointerFree:
		return "Argument is not a pointer returned by Allocate"
	}
	return e.Kind.String()
}

func (e *Error) fields() logrus.Fields {
	f := logrus.Fields{
		"kind": e.Kind.String(),
		"file": e.Loc.File,
		"line": e.Loc.Line,
	}
	switch e.Kind {
	case KindRequestTooSmall, KindRequestTooLarge:
		f["request"] = e.Request
		f["limit"] = e.Limit
	case KindOutOfMemory:
		f["request"] = e.Request
	case KindOutOfArenaFree, KindUnknownPointerFree, KindDoubleFree:
		f["ptr"] = e.Ptr.String()
	}
	return f
}

// KindOf returns the kind of a rejected call, or 0 when err did not come
// from Allocate or Free.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
