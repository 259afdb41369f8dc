// Package log wires logr loggers for the OT extension protocol.
package log

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Name is the root name of every logger returned by this package.
const Name = "otext"

// GetLogger returns a stdr backed logr.Logger and sets the global stdr
// verbosity: 0 for info messages, 1 for debug messages (extension
// rounds) and 2 for trace messages (single OT batches and matrix
// fingerprints). Any other value falls back to 0.
func GetLogger(v int) logr.Logger {
	logger := stdr.New(nil).WithName(Name)
	if v > 2 || v < 0 {
		v = 0
		logger.Info("Invalid verbosity, setting logger to display info level messages only.")
	}
	stdr.SetVerbosity(v)

	return logger
}

// ContextWithLogger returns a context carrying logger, to be picked up
// by the extension server and clients.
func ContextWithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// GetLoggerFromContextWithName returns the logger carried by ctx, or a
// stdr logger at the current global verbosity if there is none, named
// name.
func GetLoggerFromContextWithName(ctx context.Context, name string) logr.Logger {
	logger, err := logr.FromContext(ctx)
	if err != nil {
		logger = stdr.New(nil).WithName(Name)
	}

	if name != "" {
		return logger.WithName(name)
	}
	return logger
}
