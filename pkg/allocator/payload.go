package allocator

import (
	"encoding"

	"github.com/pkg/errors"
)

// Bytes returns the payload of the active block behind p. The slice aliases
// the arena and is only valid until p is freed.
func (a *Allocator) Bytes(p Pointer) ([]byte, error) {
	if p == Nil || !a.validPointer(p) {
		return nil, errors.Wrapf(ErrInvalidPointer, "%v is not inside the arena", p)
	}
	pos, found, err := a.find(a.headerOf(p))
	if err != nil {
		return nil, err
	}
	if !found || !pos.h.active {
		return nil, errors.Wrapf(ErrInvalidPointer, "%v is not an allocated block", p)
	}
	return a.arena.Slice(pos.curr+HeaderSize, int(pos.h.size))
}

// Get decodes the payload behind p into into.
func (a *Allocator) Get(p Pointer, into encoding.BinaryUnmarshaler) error {
	buf, err := a.Bytes(p)
	if err != nil {
		return err
	}
	if err := into.UnmarshalBinary(buf); err != nil {
		return errors.Wrap(ErrUnmarshal, err.Error())
	}
	return nil
}

// Set encodes from into the payload behind p. Bytes past the encoded value
// are left as they were.
func (a *Allocator) Set(p Pointer, from encoding.BinaryMarshaler) error {
	buf, err := a.Bytes(p)
	if err != nil {
		return err
	}
	data, err := from.MarshalBinary()
	if err != nil {
		return errors.Wrap(ErrMarshal, err.Error())
	}
	if len(data) > len(buf) {
		return errors.Wrapf(ErrPayloadTooLarge, "%d bytes into block of %d", len(data), len(buf))
	}
	copy(buf, data)
	return nil
}
