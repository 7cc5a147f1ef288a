//go:build unix

package arena

import (
	"os"
	"path/filepath"

	"go-memgrind/util/helpers"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Map opens (creating if needed) filename and maps capacity bytes of it as a
// shared arena. A freshly created file reads as zeroes.
func Map(filename string, capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d", capacity)
	}
	if err := helpers.CreateDir(filepath.Dir(filename)); err != nil {
		return nil, errors.Wrap(err, "failed to create arena dir")
	}

	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open arena file")
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat arena file")
	}
	if stat.Size() < int64(capacity) {
		if err := f.Truncate(int64(capacity)); err != nil {
			return nil, errors.Wrap(err, "failed to grow arena file")
		}
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "failed to mmap arena file")
	}

	return &Arena{
		buf:    buf,
		closer: unix.Munmap,
		syncer: func(b []byte) error { return unix.Msync(b, unix.MS_SYNC) },
	}, nil
}
