//go:build !unix

package arena

import "github.com/pkg/errors"

var ErrMapUnsupported = errors.New("arena: file mapping is not supported on this platform")

func Map(filename string, capacity int) (*Arena, error) {
	return nil, ErrMapUnsupported
}
