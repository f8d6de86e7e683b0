// Package logging wraps a single process-wide logrus logger, configured
// with the same flag > env > default precedence the teacher's slog
// wrapper uses, adapted to structured fields instead of message
// interpolation.
package logging

import (
	"flag"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const envLogLevel = "IRARCHIVES_LOG_LEVEL"
const envLogFormat = "LOG_FORMAT"

var (
	global   *logrus.Logger
	initOnce sync.Once

	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

// Init initializes the global logger. Safe to call multiple times; the
// first call wins.
func Init() {
	initOnce.Do(func() {
		global = logrus.New()
		global.SetLevel(detectLevel())
		if strings.EqualFold(os.Getenv(envLogFormat), "text") {
			global.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		} else {
			global.SetFormatter(&logrus.JSONFormatter{})
		}
	})
}

// detectLevel resolves the initial log level from (precedence high→low):
//  1. command-line flag -log.level
//  2. environment variable IRARCHIVES_LOG_LEVEL
//  3. default (info)
func detectLevel() logrus.Level {
	if *flagLevel == "" {
		for _, arg := range os.Args[1:] {
			if strings.HasPrefix(arg, "-log.level=") {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) == 2 {
					*flagLevel = parts[1]
				}
			}
		}
	}
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(*flagLevel)); err == nil && *flagLevel != "" {
		return lvl
	}
	if env := os.Getenv(envLogLevel); env != "" {
		if lvl, err := logrus.ParseLevel(strings.TrimSpace(env)); err == nil {
			return lvl
		}
	}
	return logrus.InfoLevel
}

// Logger returns the global logger (ensures Init was called).
func Logger() *logrus.Logger {
	Init()
	return global
}

// For returns a component-scoped entry, e.g. logging.For("ingest.worker").
func For(component string) *logrus.Entry {
	return Logger().WithField("component", component)
}

// UseWriter swaps the output writer (intended for tests). Retains level/format.
func UseWriter(w io.Writer) {
	Init()
	global.SetOutput(w)
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	global.SetLevel(lvl)
	return nil
}
