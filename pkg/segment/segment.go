// Package segment attaches read-only to the shared-memory activity log a
// writer process maintains in a memory-mapped file, walks the named
// sub-allocations (chunks) inside it, and follows the file when it is
// rotated.
//
// The writer never locks. A reader trusts what it reads only while the
// segment's allocation epoch still equals the value captured at attach
// time; every iterator step re-checks it.
package segment

import (
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/downfa11-org/shmlog/pkg/config"
	"github.com/downfa11-org/shmlog/pkg/diag"
	"github.com/downfa11-org/shmlog/pkg/instance"
	"github.com/downfa11-org/shmlog/pkg/metrics"
	"github.com/downfa11-org/shmlog/pkg/types"
	"github.com/downfa11-org/shmlog/util"
	"github.com/google/uuid"
)

// fileIdentity is the (device, inode) pair of an open segment file.
type fileIdentity struct {
	dev uint64
	ino uint64
}

// Segment is one reader's handle on a segment file. It is not safe for
// concurrent use; readers that need parallelism open one Segment each.
//
// mem is non-nil exactly when file is open.
type Segment struct {
	id       uuid.UUID
	name     string
	path     string
	resolver instance.Resolver

	file     *os.File
	mem      []byte
	first    int
	identity fileIdentity

	localEpoch uint64
	// generation counts successful attaches; chunks carry it so that a
	// chunk from a previous mapping is recognised as stale.
	generation uint64
	fault      error

	filters *Filters
	diag    diag.Sink

	epochWait     time.Duration
	epochPoll     time.Duration
	reopenRetries int
	reopenBackoff time.Duration
	// retryHook runs before each open attempt in Reopen. Tests only.
	retryHook     func(attempt int)
}

// New returns a detached segment handle tuned by cfg. A nil cfg selects
// config.Default(); cfg itself is not modified. Diagnostics are discarded until SetDiag is called.
func New(cfg *config.Config) *Segment {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	c.Normalize()
	cfg = &c

	return &Segment{
		id:            uuid.New(),
		resolver:      instance.NewResolver(cfg.InstanceDir, cfg.SegmentFile),
		filters:       newFilters(),
		diag:          diag.Nop(),
		epochWait:     cfg.EpochWaitTimeout(),
		epochPoll:     cfg.EpochPollInterval(),
		reopenRetries: cfg.SilentRetries(),
		reopenBackoff: cfg.ReopenBackoff(),
	}
}

// SetDiag installs the sink used for human-readable error reports.
func (s *Segment) SetDiag(sink diag.Sink) {
	s.diag = sink
}

// SetResolver replaces the instance name resolver.
func (s *Segment) SetResolver(r instance.Resolver) {
	s.resolver = r
}

// SetInstance records name and resolves it to the segment path. An invalid
// name is reported through the diagnostic sink.
func (s *Segment) SetInstance(name string) error {
	path, err := s.resolver.Resolve(name)
	if err != nil {
		s.diag.Report("Invalid instance name: %v\n", err)
		return &Error{Op: "resolve", Err: err}
	}
	s.name = name
	s.path = path
	return nil
}

// SetPath points the handle at path directly, bypassing instance resolution.
func (s *Segment) SetPath(path string) {
	s.path = path
}

// Name returns the instance name given to SetInstance.
func (s *Segment) Name() string { return s.name }

// Path returns the segment file path.
func (s *Segment) Path() string { return s.path }

// ID identifies this reader in log output.
func (s *Segment) ID() uuid.UUID { return s.id }

// Filters returns the reader-local selection state used by record filters.
func (s *Segment) Filters() *Filters { return s.filters }

// Attached reports whether a segment is currently mapped.
func (s *Segment) Attached() bool { return s.mem != nil }

// TotalSize returns the size of the mapped region, or 0 when detached.
func (s *Segment) TotalSize() int { return len(s.mem) }

// LocalEpoch returns the allocation epoch captured at attach time.
func (s *Segment) LocalEpoch() uint64 { return s.localEpoch }

// Epoch returns the writer's current allocation epoch, or 0 when detached.
func (s *Segment) Epoch() uint64 {
	if s.mem == nil {
		return 0
	}
	return loadEpoch(s.mem)
}

// Valid reports whether the segment is attached and the writer has not
// recycled the chunk list since.
func (s *Segment) Valid() bool {
	return s.mem != nil && loadEpoch(s.mem) == s.localEpoch
}

// StartTime returns the writer start time recorded in the header.
func (s *Segment) StartTime() time.Time {
	if s.mem == nil {
		return time.Time{}
	}
	return time.Unix(types.DecodeSegmentHeader(s.mem).StartTime, 0)
}

// Close unmaps the segment and then closes its descriptor. Closing a
// detached handle is a no-op.
func (s *Segment) Close() error {
	if s.mem == nil {
		return nil
	}

	var firstErr error
	if err := unmapRegion(s.mem); err != nil {
		firstErr = err
	}
	s.mem = nil
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.file = nil
	s.fault = nil
	metrics.SegmentsAttached.Dec()

	util.Debug("[%s] detached %s", s.id, s.path)
	return firstErr
}

// Delete releases every resource held by s, including the filter state.
// s must not be used afterwards.
func (s *Segment) Delete() error {
	err := s.Close()
	s.filters = nil
	s.name = ""
	s.path = ""
	return err
}

// loadEpoch reads the live allocation epoch. The mapping is page aligned
// and the epoch sits at an 8-byte offset, so the atomic load is aligned.
func loadEpoch(mem []byte) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&mem[types.OffSegEpoch])))
}
