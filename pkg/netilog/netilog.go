// Package netilog builds the logrus logger neti uses throughout the
// process, and threads it through context.Context the way the rest of
// the codebase expects to retrieve it.
package netilog

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// New builds a logger that writes to w (typically the configured
// neti.log_file) as JSON, unless w is a TTY, in which case it uses
// logrus's human-readable text formatter - the same selection
// cmd/wgmesh/main.go made for its own stdout.
func New(w io.Writer, debug bool) *logrus.Logger {
	ll := logrus.New()
	ll.SetOutput(w)

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		ll.SetFormatter(&logrus.TextFormatter{})
	} else {
		ll.SetFormatter(&logrus.JSONFormatter{})
	}

	if debug {
		ll.SetLevel(logrus.DebugLevel)
	} else {
		ll.SetLevel(logrus.InfoLevel)
	}
	return ll
}

// WithLogger returns a new context carrying ll.
func WithLogger(ctx context.Context, ll logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, ll)
}

// FromContext returns the logger stored in ctx, or logrus's standard
// logger if none was set.
func FromContext(ctx context.Context) logrus.FieldLogger {
	if ll, ok := ctx.Value(ctxKey{}).(logrus.FieldLogger); ok {
		return ll
	}
	return logrus.StandardLogger()
}
