// Package logging wires the shared slog backend used across this
// module, following the per-subsystem UseLogger pattern common to the
// btcd/dcrd family of nodes.
package logging

import (
	"io"

	"github.com/decred/slog"
)

// NewBackend constructs the shared logging backend that every
// subsystem's named logger is carved out of.
func NewBackend(w io.Writer) *slog.Backend {
	return slog.NewBackend(w)
}
