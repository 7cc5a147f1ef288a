package allocator

import (
	"fmt"
	"runtime"
)

// Location identifies the call site an allocation or free was issued from.
// It is attached to every diagnostic the allocator emits.
type Location struct {
	File string
	Line int
}

// Here returns the location of its caller.
func Here() Location {
	return Caller(1)
}

// Caller returns the location skip frames above its caller.
func Caller(skip int) Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{File: "???"}
	}
	return Location{File: file, Line: line}
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}
