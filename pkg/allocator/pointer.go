package allocator

import "fmt"

// Pointer is an opaque handle to the payload of an allocated block.
// Handles from different allocators never overlap.
type Pointer uint64

const Nil Pointer = 0

func (p Pointer) String() string {
	if p == Nil {
		return "nil"
	}
	return fmt.Sprintf("%#x", uint64(p))
}
