package allocator

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var bin = binary.LittleEndian

const (
	// HeaderSize is the number of bytes of metadata in front of every block.
	HeaderSize = 2
	// MaxBlockSize is the largest payload a single header can describe.
	MaxBlockSize = 1<<12 - 1

	activeBit = 1 << 12
	sizeMask  = MaxBlockSize
)

var ErrInvalidHeader = errors.New("invalid block header")

// header is the metadata that prefixes every block, free or allocated.
// On the wire it is one little-endian word: bits 0..11 hold the payload
// size, bit 12 the active flag. The remaining bits are always zero.
type header struct {
	size   uint16
	active bool
}

func (h *header) put(buf []byte) error {
	if h.size > MaxBlockSize {
		return errors.Wrapf(ErrInvalidHeader, "size %d exceeds %d", h.size, MaxBlockSize)
	}
	if len(buf) < HeaderSize {
		return errors.Wrapf(ErrInvalidHeader, "need %d bytes, got %d", HeaderSize, len(buf))
	}
	word := h.size
	if h.active {
		word |= activeBit
	}
	bin.PutUint16(buf, word)
	return nil
}

func (h *header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	return buf, h.put(buf)
}

func (h *header) UnmarshalBinary(d []byte) error {
	if len(d) < HeaderSize {
		return errors.Wrapf(ErrInvalidHeader, "need %d bytes, got %d", HeaderSize, len(d))
	}
	word := bin.Uint16(d)
	if word&^(sizeMask|activeBit) != 0 {
		return errors.Wrapf(ErrInvalidHeader, "reserved bits set in %#04x", word)
	}
	h.size = word & sizeMask
	h.active = word&activeBit != 0
	return nil
}
