// Package allocator implements a first-fit allocator over a single
// fixed-capacity arena. Blocks are laid out back to back, each prefixed by a
// header; the chain of headers is walked by adding header and payload sizes,
// so there is no separate free list.
package allocator

import (
	"sync/atomic"

	"go-memgrind/pkg/arena"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// none marks the absence of a neighbouring header.
const none = -1

var lastID atomic.Uint32

type Allocator struct {
	arena       *arena.Arena
	capacity    int
	base        Pointer
	initialized bool
	log         logrus.FieldLogger
}

// New attaches an allocator to a. A zeroed arena gets a single free block
// spanning all of it; an arena that already holds a block layout (a reopened
// file mapping) is verified and reused as is.
func New(a *arena.Arena, opts *Options) (*Allocator, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	capacity := a.Cap()
	if capacity <= HeaderSize || capacity-HeaderSize > MaxBlockSize {
		return nil, errors.Wrapf(
			ErrInvalidCapacity,
			"capacity %d must be in (%d, %d]",
			capacity, HeaderSize, MaxBlockSize+HeaderSize,
		)
	}

	al := &Allocator{
		arena:    a,
		capacity: capacity,
		base:     Pointer(uint64(lastID.Add(1)) << 32),
		log:      opts.Logger,
	}
	if al.log == nil {
		al.log = DefaultOptions().Logger
	}

	fresh, err := al.init()
	if err != nil {
		return nil, err
	}
	if !fresh {
		if err := al.Verify(); err != nil {
			return nil, errors.Wrap(err, "arena holds an invalid block layout")
		}
	}
	return al, nil
}

// Allocate returns a handle to size bytes of payload from the first block
// that can hold them. On failure it reports the error, tagged with loc, and
// returns Nil.
func (a *Allocator) Allocate(size int, loc Location) (Pointer, error) {
	if _, err := a.init(); err != nil {
		return Nil, err
	}
	if err := a.validateRequest(size, loc); err != nil {
		return Nil, err
	}

	for off := 0; off != none; {
		h, err := a.headerAt(off)
		if err != nil {
			return Nil, err
		}

		if !h.active {
			switch a.decide(off, h, size) {
			case actionSplit:
				if err := a.split(off, h, size); err != nil {
					return Nil, errors.Wrap(err, "failed to split block")
				}
				h.size = uint16(size)
				fallthrough
			case actionFill:
				h.active = true
				if err := a.setHeader(off, h); err != nil {
					return Nil, errors.Wrap(err, "failed to activate block")
				}
				return a.pointerAt(off), nil
			}
		}

		if off, err = a.next(off); err != nil {
			return Nil, err
		}
	}

	return Nil, a.report(&Error{Kind: KindOutOfMemory, Loc: loc, Request: size})
}

// Free releases the block behind p and merges it with free neighbours.
// Invalid frees are reported, tagged with loc, and leave the arena untouched.
func (a *Allocator) Free(p Pointer, loc Location) error {
	if p == Nil {
		return a.report(&Error{Kind: KindNullFree, Loc: loc})
	}
	if !a.validPointer(p) {
		return a.report(&Error{Kind: KindOutOfArenaFree, Loc: loc, Ptr: p})
	}
	if _, err := a.init(); err != nil {
		return err
	}

	pos, found, err := a.find(a.headerOf(p))
	if err != nil {
		return err
	}
	if !found {
		return a.report(&Error{Kind: KindUnknownPointerFree, Loc: loc, Ptr: p})
	}
	if !pos.h.active {
		return a.report(&Error{Kind: KindDoubleFree, Loc: loc, Ptr: p})
	}

	pos.h.active = false
	if err := a.setHeader(pos.curr, pos.h); err != nil {
		return errors.Wrap(err, "failed to deactivate block")
	}
	return errors.Wrap(a.coalesce(pos.prev, pos.curr, pos.next), "failed to coalesce freed block")
}

// Start is the lowest handle inside the arena.
func (a *Allocator) Start() Pointer { return a.base }

// End is the highest handle inside the arena.
func (a *Allocator) End() Pointer { return a.base + Pointer(a.capacity-1) }

func (a *Allocator) Cap() int { return a.capacity }

// MaxRequest is the largest size Allocate accepts.
func (a *Allocator) MaxRequest() int { return a.capacity - HeaderSize }

// init lays out the initial free block unless the arena already holds one.
// A zero first header word means the arena was never laid out, since no
// real block has size zero. fresh reports whether the layout was created.
func (a *Allocator) init() (fresh bool, err error) {
	if a.initialized {
		return false, nil
	}

	word, err := a.arena.Slice(0, HeaderSize)
	if err != nil {
		return false, errors.Wrap(err, "failed to read first header")
	}
	if bin.Uint16(word) == 0 {
		if err := a.setHeader(0, header{size: uint16(a.MaxRequest())}); err != nil {
			return false, errors.Wrap(err, "failed to write initial header")
		}
		fresh = true
	}

	a.initialized = true
	return fresh, nil
}

func (a *Allocator) validateRequest(size int, loc Location) error {
	if size < 1 {
		return a.report(&Error{Kind: KindRequestTooSmall, Loc: loc, Request: size, Limit: 1})
	}
	if size > a.MaxRequest() {
		return a.report(&Error{Kind: KindRequestTooLarge, Loc: loc, Request: size, Limit: a.MaxRequest()})
	}
	return nil
}

func (a *Allocator) validPointer(p Pointer) bool {
	return a.Start() <= p && p <= a.End()
}

func (a *Allocator) pointerAt(off int) Pointer {
	return a.base + Pointer(off+HeaderSize)
}

// headerOf maps a handle that passed validPointer to the offset its header
// would have. The result may be negative.
func (a *Allocator) headerOf(p Pointer) int {
	return int(p-a.base) - HeaderSize
}

func (a *Allocator) report(e *Error) error {
	a.log.WithFields(e.fields()).Error(e.message())
	return e
}
