// Package arena provides the fixed-capacity byte region that backs an allocator.
// An arena never grows: every access is checked against its capacity.
package arena

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

const DefaultCapacity = 4096

var ErrOutOfBounds = errors.New("arena: access out of bounds")
var ErrInvalidCapacity = errors.New("arena: invalid capacity")
var ErrClosed = errors.New("arena: closed")

// Arena is a zero-initialized byte region of fixed capacity.
type Arena struct {
	buf    []byte
	closer func([]byte) error
	syncer func([]byte) error
}

// New returns a heap backed arena of the given capacity.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d", capacity)
	}
	return &Arena{buf: make([]byte, capacity)}, nil
}

func (a *Arena) Cap() int {
	return len(a.buf)
}

// Slice returns buf[off:off+n] when it lies entirely inside the arena.
func (a *Arena) Slice(off, n int) ([]byte, error) {
	if a.buf == nil {
		return nil, ErrClosed
	}
	end, ok := addOverflowSafe(off, n)
	if off < 0 || n < 0 || !ok || end > len(a.buf) {
		return nil, errors.Wrapf(ErrOutOfBounds, "off=%d n=%d cap=%d", off, n, len(a.buf))
	}
	return a.buf[off:end], nil
}

// Has reports whether [off, off+n) is inside the arena.
func (a *Arena) Has(off, n int) bool {
	_, err := a.Slice(off, n)
	return err == nil
}

// Zero clears the whole arena.
func (a *Arena) Zero() {
	clear(a.buf)
}

// Sync flushes a file backed arena. It is a no-op for heap arenas.
func (a *Arena) Sync() error {
	if a.buf == nil {
		return ErrClosed
	}
	if a.syncer == nil {
		return nil
	}
	return errors.Wrap(a.syncer(a.buf), "failed to sync arena")
}

// Close releases the backing memory. The arena is unusable afterwards.
func (a *Arena) Close() error {
	if a.buf == nil {
		return ErrClosed
	}
	buf := a.buf
	a.buf = nil
	if a.closer == nil {
		return nil
	}
	return errors.Wrap(a.closer(buf), "failed to release arena")
}

func addOverflowSafe[T constraints.Signed](a, b T) (T, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}
