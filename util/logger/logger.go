package logger

import (
	"io"
	"os"

	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var L = New(os.Stderr, logger.DebugLevel)

func New(out io.Writer, level logger.Level) *logger.Logger {
	return &logger.Logger{
		Out:   out,
		Level: level,
		Hooks: make(logger.LevelHooks),
		Formatter: &prefixed.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			ForceFormatting: true,
		},
		ExitFunc: os.Exit,
	}
}

// Prefixed returns an entry whose messages are tagged with prefix.
func Prefixed(l logger.FieldLogger, prefix string) *logger.Entry {
	return l.WithField("prefix", prefix)
}
