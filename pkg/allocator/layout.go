package allocator

import "github.com/pkg/errors"

type action int

const (
	actionSkip action = iota
	actionFill
	actionSplit
)

func (a *Allocator) headerAt(off int) (header, error) {
	var h header
	buf, err := a.arena.Slice(off, HeaderSize)
	if err != nil {
		return h, errors.Wrapf(err, "failed to read header at %d", off)
	}
	if err := h.UnmarshalBinary(buf); err != nil {
		return h, errors.Wrapf(err, "failed to decode header at %d", off)
	}
	return h, nil
}

func (a *Allocator) setHeader(off int, h header) error {
	buf, err := a.arena.Slice(off, HeaderSize)
	if err != nil {
		return errors.Wrapf(err, "failed to write header at %d", off)
	}
	return h.put(buf)
}

// next returns the offset of the header following the one at off, or none
// when that header could not fit before the end of the arena.
func (a *Allocator) next(off int) (int, error) {
	h, err := a.headerAt(off)
	if err != nil {
		return none, err
	}
	n := off + HeaderSize + int(h.size)
	if n >= a.capacity-HeaderSize {
		return none, nil
	}
	return n, nil
}

// walk calls fn for every header in offset order until fn returns an error.
func (a *Allocator) walk(fn func(off int, h header) error) error {
	for off := 0; off != none; {
		h, err := a.headerAt(off)
		if err != nil {
			return err
		}
		if err := fn(off, h); err != nil {
			return err
		}
		if off, err = a.next(off); err != nil {
			return err
		}
	}
	return nil
}

type position struct {
	prev, curr, next int
	h                header
}

// find walks the chain looking for a header at exactly target.
func (a *Allocator) find(target int) (position, bool, error) {
	pos := position{prev: none, curr: 0}
	for pos.curr != none {
		h, err := a.headerAt(pos.curr)
		if err != nil {
			return pos, false, err
		}
		next, err := a.next(pos.curr)
		if err != nil {
			return pos, false, err
		}
		if pos.curr == target {
			pos.h, pos.next = h, next
			return pos, true, nil
		}
		pos.prev, pos.curr = pos.curr, next
	}
	return pos, false, nil
}

// decide picks what to do with the free block h at off for a request of n
// bytes. A block is only split when the remainder can carry its own header
// and at least one byte of payload.
func (a *Allocator) decide(off int, h header, n int) action {
	size := int(h.size)
	switch {
	case size < n:
		return actionSkip
	case size-n <= HeaderSize || off+HeaderSize+n >= a.capacity-HeaderSize:
		return actionFill
	default:
		return actionSplit
	}
}

// split shrinks the block at off to n bytes and turns the rest into a new
// free block directly behind it.
func (a *Allocator) split(off int, h header, n int) error {
	rest := int(h.size) - HeaderSize - n
	if rest < 1 {
		return errors.Errorf("block of %d bytes at %d is too small to split for %d", h.size, off, n)
	}
	if err := a.setHeader(off, header{size: uint16(n), active: h.active}); err != nil {
		return err
	}
	return a.setHeader(off+HeaderSize+n, header{size: uint16(rest)})
}

// merge grows the block at first over the block at second, which must
// directly follow it. The absorbed header becomes part of the payload.
func (a *Allocator) merge(first, second int) error {
	f, err := a.headerAt(first)
	if err != nil {
		return err
	}
	s, err := a.headerAt(second)
	if err != nil {
		return err
	}
	f.size += HeaderSize + s.size
	return a.setHeader(first, f)
}

// coalesce merges the free block at curr with its free neighbours. The
// forward merge runs first so a run of three free blocks collapses into prev.
func (a *Allocator) coalesce(prev, curr, next int) error {
	if next != none {
		h, err := a.headerAt(next)
		if err != nil {
			return err
		}
		if !h.active {
			if err := a.merge(curr, next); err != nil {
				return errors.Wrap(err, "failed to merge with next block")
			}
		}
	}

	if prev != none {
		h, err := a.headerAt(prev)
		if err != nil {
			return err
		}
		if !h.active {
			if err := a.merge(prev, curr); err != nil {
				return errors.Wrap(err, "failed to merge with previous block")
			}
		}
	}
	return nil
}
