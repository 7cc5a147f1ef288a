package allocator

import (
	"go-memgrind/util/logger"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// Logger receives one entry per rejected call. Defaults to logger.L.
	Logger logrus.FieldLogger
}

func DefaultOptions() *Options {
	return &Options{Logger: logger.L}
}
