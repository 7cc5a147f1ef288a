package allocator

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncoding(t *testing.T) {
	cases := []struct {
		h    header
		want []byte
	}{
		{header{size: 0}, []byte{0x00, 0x00}},
		{header{size: 4094}, []byte{0xfe, 0x0f}},
		{header{size: 4094, active: true}, []byte{0xfe, 0x1f}},
		{header{size: 1, active: true}, []byte{0x01, 0x10}},
		{header{size: MaxBlockSize}, []byte{0xff, 0x0f}},
	}

	for _, c := range cases {
		buf, err := c.h.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, c.want, buf)

		var got header
		require.NoError(t, got.UnmarshalBinary(buf))
		require.Equal(t, c.h, got)
	}
}

func TestHeaderRejectsOversize(t *testing.T) {
	h := header{size: MaxBlockSize + 1}
	_, err := h.MarshalBinary()
	require.True(t, errors.Is(err, ErrInvalidHeader))
}

func TestHeaderRejectsReservedBits(t *testing.T) {
	var h header
	require.True(t, errors.Is(h.UnmarshalBinary([]byte{0x00, 0x20}), ErrInvalidHeader))
	require.True(t, errors.Is(h.UnmarshalBinary([]byte{0x00}), ErrInvalidHeader))
}
