// Package logger - Builds the service logger.
package logger

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/config"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New creates a logger writing to stdout and, when cfg.File is set, to that
// file as well.
//
// Arguments:
//   - cfg: The log settings.
//
// Returns:
//   - *logrus.Logger: The logger.
//   - io.Closer: Closes the log file and points the logger back at stdout.
//     Always non-nil when err is nil.
//   - error: If the level is unknown or the file cannot be opened.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid log level")
	}

	log := logrus.New()
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	log.SetOutput(os.Stdout)
	if cfg.File == "" {
		return log, closerFunc(func() error { return nil }), nil
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", cfg.File)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))

	return log, closerFunc(func() error {
		log.SetOutput(os.Stdout)
		return errors.Wrapf(file.Close(), "failed to close log file %s", cfg.File)
	}), nil
}
