package segment

import (
	"errors"
	"fmt"
)

var (
	ErrIO              = errors.New("i/o error")
	ErrNotRegularFile  = errors.New("not a regular file")
	ErrBadMagic        = errors.New("wrong magic number")
	ErrBadHeader       = errors.New("inconsistent segment header")
	ErrMapFailed       = errors.New("cannot map segment")
	ErrEpochTimeout    = errors.New("segment epoch not initialised in time")
	ErrFormatViolation = errors.New("chunk format violation")
	ErrStaleChunk      = errors.New("chunk belongs to a detached or recycled segment")
	ErrNotAttached     = errors.New("segment not attached")
	ErrNoPath          = errors.New("no segment path configured")
	ErrUnsupported     = errors.New("shared segments are not supported on this platform")
)

// Error describes a failed operation on one segment file.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("segment %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("segment %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// kindOf returns a short metric label for err.
func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotRegularFile):
		return "not_regular"
	case errors.Is(err, ErrBadMagic):
		return "bad_magic"
	case errors.Is(err, ErrBadHeader):
		return "bad_header"
	case errors.Is(err, ErrMapFailed):
		return "map_failed"
	case errors.Is(err, ErrEpochTimeout):
		return "epoch_timeout"
	case errors.Is(err, ErrNoPath):
		return "no_path"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "io"
	}
}
