// Package diag carries human-readable reports about non-fatal problems
// (unreadable files, bad magic, stale segments) to whatever the caller
// installs, without tying the segment layer to a logging mechanism.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/downfa11-org/shmlog/util"
)

// Func receives the opaque context installed next to it followed by a
// printf-style message.
type Func func(priv any, format string, args ...any)

// Sink pairs a report function with its context. The zero Sink discards
// every report.
type Sink struct {
	fn   Func
	priv any
}

// New returns a Sink calling fn with priv. A nil fn selects Nop.
func New(fn Func, priv any) Sink {
	if fn == nil {
		return Nop()
	}
	return Sink{fn: fn, priv: priv}
}

// Nop returns a Sink that reports nothing.
func Nop() Sink {
	return Sink{}
}

// Writer returns a Sink that formats reports onto w. A nil w selects Nop.
func Writer(w io.Writer) Sink {
	if w == nil {
		return Nop()
	}
	return Sink{
		fn: func(priv any, format string, args ...any) {
			fmt.Fprintf(priv.(io.Writer), format, args...)
		},
		priv: w,
	}
}

// Logger returns a Sink that forwards reports to the util logger at warn level.
func Logger() Sink {
	return Sink{
		fn: func(_ any, format string, args ...any) {
			util.Warn("%s", strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
		},
	}
}

// Report delivers one message. It never blocks on its own; whether it is
// safe to call from several goroutines depends on the installed Func.
func (s Sink) Report(format string, args ...any) {
	if s.fn == nil {
		return
	}
	s.fn(s.priv, format, args...)
}

// IsNop reports whether s discards everything.
func (s Sink) IsNop() bool {
	return s.fn == nil
}
