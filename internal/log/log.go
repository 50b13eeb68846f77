// Package log configures the process-wide structured logger.
//
// Every component logs through the shared *logrus.Logger returned by L(),
// tagging entries with a "component" field rather than opening a new
// logger per package. This keeps log shape consistent across the RESP
// server, the persistence engines and the replication link.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and
// applies it to the shared logger. Unknown names are ignored.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return
	}
	base.SetLevel(lvl)
}

// L returns the shared logger.
func L() *logrus.Logger {
	return base
}

// Component returns an entry pre-tagged with a component name, the unit
// most call sites actually want.
func Component(name string) *logrus.Entry {
	return base.WithField("component", name)
}
