package allocator

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Block describes one block of the arena as seen by Blocks.
type Block struct {
	Ptr    Pointer
	Size   int
	Active bool
}

type Stats struct {
	Capacity     int
	Blocks       int
	ActiveBlocks int
	FreeBlocks   int
	ActiveBytes  int
	FreeBytes    int
	LargestFree  int
	Overhead     int
}

// Blocks lists every block in address order.
func (a *Allocator) Blocks() ([]Block, error) {
	var blocks []Block
	err := a.walk(func(off int, h header) error {
		blocks = append(blocks, Block{Ptr: a.pointerAt(off), Size: int(h.size), Active: h.active})
		return nil
	})
	return blocks, err
}

// Dump writes the size and state of every block to w on a single line.
func (a *Allocator) Dump(w io.Writer) error {
	blocks, err := a.Blocks()
	if err != nil {
		return errors.Wrap(err, "failed to walk arena")
	}

	sb := strings.Builder{}
	for _, b := range blocks {
		active := 0
		if b.Active {
			active = 1
		}
		fmt.Fprintf(&sb, "Size = %d, Active = %d ---> ", b.Size, active)
	}
	sb.WriteByte('\n')

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.Wrap(err, "failed to write dump")
	}
	a.log.WithField("blocks", len(blocks)).Debug("arena dumped")
	return nil
}

func (a *Allocator) Stats() (Stats, error) {
	s := Stats{Capacity: a.capacity}
	err := a.walk(func(off int, h header) error {
		size := int(h.size)
		s.Blocks++
		s.Overhead += HeaderSize
		if h.active {
			s.ActiveBlocks++
			s.ActiveBytes += size
			return nil
		}
		s.FreeBlocks++
		s.FreeBytes += size
		s.LargestFree = max(s.LargestFree, size)
		return nil
	})
	return s, err
}

// Verify checks that the headers tile the arena exactly, that no block is
// empty and that no two free blocks are adjacent.
func (a *Allocator) Verify() error {
	total := 0
	prevFree := false
	err := a.walk(func(off int, h header) error {
		if h.size == 0 {
			return errors.Wrapf(ErrCorrupt, "empty block at %d", off)
		}
		if prevFree && !h.active {
			return errors.Wrapf(ErrCorrupt, "adjacent free blocks at %d", off)
		}
		prevFree = !h.active
		total += HeaderSize + int(h.size)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return err
		}
		return errors.Wrap(ErrCorrupt, err.Error())
	}
	if total != a.capacity {
		return errors.Wrapf(ErrCorrupt, "blocks cover %d of %d bytes", total, a.capacity)
	}
	return nil
}
