package segment

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/downfa11-org/shmlog/pkg/metrics"
	"github.com/downfa11-org/shmlog/pkg/types"
	"github.com/downfa11-org/shmlog/util"
	"github.com/pkg/errors"
)

// Open attaches the handle to its segment file. It is a no-op when the
// handle is already attached. With reportErrors set, failures are also
// described through the diagnostic sink.
//
// On failure nothing stays open: the descriptor and any mapping acquired
// along the way are released before Open returns.
func (s *Segment) Open(reportErrors bool) error {
	if s.mem != nil {
		return nil
	}

	err := s.open(reportErrors)
	if err != nil {
		metrics.ObserveOpenFailure(kindOf(err))
		return &Error{Op: "open", Path: s.path, Err: err}
	}

	metrics.SegmentOpens.Inc()
	metrics.SegmentsAttached.Inc()
	util.Debug("[%s] attached %s size=%d epoch=%d", s.id, s.path, len(s.mem), s.localEpoch)
	return nil
}

// Reattach drops the current mapping, if any, and attaches again. Use it
// after the writer recycled the chunk list in place, when iteration keeps
// returning nothing.
func (s *Segment) Reattach(reportErrors bool) error {
	if err := s.Close(); err != nil {
		util.Warn("[%s] close before reattach: %v", s.id, err)
	}
	return s.Open(reportErrors)
}

func (s *Segment) open(report bool) error {
	if s.path == "" {
		return ErrNoPath
	}

	f, err := os.Open(s.path)
	if err != nil {
		if report {
			s.diag.Report("Cannot open %s: %v\n", s.path, err)
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	st, err := statFile(f)
	if err != nil {
		f.Close()
		if report {
			s.diag.Report("Cannot stat %s: %v\n", s.path, err)
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !st.regular {
		f.Close()
		if report {
			s.diag.Report("%s is not a regular file\n", s.path)
		}
		return ErrNotRegularFile
	}

	var raw [types.SegmentHeaderSize]byte
	if _, err := io.ReadFull(f, raw[:]); err != nil {
		f.Close()
		if report {
			s.diag.Report("Cannot read %s: %v\n", s.path, err)
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	hdr := types.DecodeSegmentHeader(raw[:])
	if hdr.Magic != types.SegmentMagic {
		f.Close()
		if report {
			s.diag.Report("Wrong magic number in file %s\n", s.path)
		}
		return ErrBadMagic
	}
	if hdr.HeaderSize < types.SegmentHeaderSize || hdr.TotalSize < uint64(hdr.HeaderSize) {
		f.Close()
		if report {
			s.diag.Report("Inconsistent header in %s: header %d bytes, total %d bytes\n",
				s.path, hdr.HeaderSize, hdr.TotalSize)
		}
		return errors.WithMessagef(ErrBadHeader, "header %d, total %d", hdr.HeaderSize, hdr.TotalSize)
	}

	// Pages past end of file would fault on first touch rather than fail here.
	if hdr.TotalSize > uint64(st.size) || hdr.TotalSize > math.MaxInt {
		f.Close()
		if report {
			s.diag.Report("Cannot mmap %s: declares %d bytes, file has %d\n", s.path, hdr.TotalSize, st.size)
		}
		return errors.WithMessagef(ErrMapFailed, "truncated: declares %d bytes, file has %d", hdr.TotalSize, st.size)
	}

	mem, err := mapRegion(f, int(hdr.TotalSize))
	if err != nil {
		f.Close()
		if report {
			s.diag.Report("Cannot mmap %s: %v\n", s.path, err)
		}
		return fmt.Errorf("%w: %w", ErrMapFailed, err)
	}

	epoch, err := s.awaitEpoch(mem)
	if err != nil {
		unmapRegion(mem)
		f.Close()
		if report {
			s.diag.Report("Segment %s not initialised after %s\n", s.path, s.epochWait)
		}
		return err
	}

	s.file = f
	s.mem = mem
	s.first = int(hdr.HeaderSize)
	s.identity = st.identity
	s.localEpoch = epoch
	s.generation++
	s.fault = nil
	return nil
}

// awaitEpoch polls until the writer has published a non-zero allocation
// epoch, giving up after s.epochWait.
func (s *Segment) awaitEpoch(mem []byte) (uint64, error) {
	deadline := time.Now().Add(s.epochWait)
	for {
		if epoch := loadEpoch(mem); epoch != 0 {
			return epoch, nil
		}
		if !time.Now().Before(deadline) {
			return 0, ErrEpochTimeout
		}
		time.Sleep(s.epochPoll)
	}
}
