package segment

import (
	"iter"

	"github.com/downfa11-org/shmlog/pkg/metrics"
	"github.com/downfa11-org/shmlog/pkg/types"
	"github.com/downfa11-org/shmlog/util"
	"github.com/pkg/errors"
)

// Chunk is a view of one sub-allocation. It does not own memory: it names
// an offset into the mapping of a particular attach generation and epoch,
// and its payload can only be read while both still hold.
type Chunk struct {
	seg   *Segment
	gen   uint64
	epoch uint64
	off   int
	hdr   types.ChunkHeader
}

func (c *Chunk) Class() string { return c.hdr.Class }
func (c *Chunk) Type() string  { return c.hdr.Type }
func (c *Chunk) Ident() string { return c.hdr.Ident }

// Offset returns the chunk's byte offset from the start of the segment.
func (c *Chunk) Offset() int { return c.off }

// Len returns the chunk length including its header.
func (c *Chunk) Len() int { return int(c.hdr.Length) }

// PayloadLen returns the number of payload bytes.
func (c *Chunk) PayloadLen() int { return c.hdr.PayloadLen() }

// Valid reports whether the chunk still describes live memory.
func (c *Chunk) Valid() bool {
	s := c.seg
	return s != nil && s.mem != nil && s.generation == c.gen && loadEpoch(s.mem) == c.epoch
}

// Payload returns the chunk payload as a slice of the shared mapping. The
// slice is read-only and may change under the caller; it must not be kept
// past the next Close, Reopen or epoch change.
func (c *Chunk) Payload() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrStaleChunk
	}
	start := c.off + types.ChunkHeaderSize
	end := c.off + int(c.hdr.Length)
	return c.seg.mem[start:end:end], nil
}

// First returns the first chunk of the segment. It returns nil without an
// error when the segment holds no chunks or when the writer has recycled
// the chunk list since attach; in the latter case the caller must reattach
// before iterating again.
func (s *Segment) First() (*Chunk, error) {
	if err := s.checkWalkable(); err != nil {
		return nil, err
	}
	if !s.epochCurrent() {
		return nil, nil
	}
	if s.first >= len(s.mem) {
		return nil, nil
	}
	return s.visit(s.first)
}

// Advance returns the chunk following c, or nil when c was the last one or
// the chunk list was recycled. A nil c yields nil.
func (s *Segment) Advance(c *Chunk) (*Chunk, error) {
	if c == nil {
		return nil, nil
	}
	if err := s.checkWalkable(); err != nil {
		return nil, err
	}
	if c.seg != s || c.gen != s.generation {
		return nil, ErrStaleChunk
	}
	if !s.epochCurrent() {
		return nil, nil
	}

	next := c.off + int(c.hdr.Length)
	if next >= len(s.mem) {
		return nil, nil
	}
	return s.visit(next)
}

// Chunks iterates over the segment in storage order. Iteration stops
// silently if the chunk list is recycled; a format violation is yielded
// as the final error.
func (s *Segment) Chunks() iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		c, err := s.First()
		for c != nil {
			if !yield(c, nil) {
				return
			}
			c, err = s.Advance(c)
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func (s *Segment) checkWalkable() error {
	if s.mem == nil {
		return &Error{Op: "iterate", Path: s.path, Err: ErrNotAttached}
	}
	return s.fault
}

func (s *Segment) epochCurrent() bool {
	if loadEpoch(s.mem) == s.localEpoch {
		return true
	}
	metrics.EpochInvalidations.Inc()
	util.Debug("[%s] epoch moved %d -> %d, abandoning walk", s.id, s.localEpoch, loadEpoch(s.mem))
	return false
}

// visit decodes the chunk at off, which is known to be below len(s.mem).
func (s *Segment) visit(off int) (*Chunk, error) {
	metrics.ChunksVisited.Inc()

	var reason string
	var hdr types.ChunkHeader
	if off+types.ChunkHeaderSize > len(s.mem) {
		reason = "header crosses end of segment"
	} else {
		hdr = types.DecodeChunkHeader(s.mem[off:])
		switch {
		case hdr.Magic != types.ChunkMagic:
			reason = "bad chunk magic"
		case hdr.Length < types.ChunkHeaderSize:
			reason = "chunk shorter than its header"
		case off+int(hdr.Length) > len(s.mem):
			reason = "chunk crosses end of segment"
		}
	}

	if reason == "" {
		return &Chunk{seg: s, gen: s.generation, epoch: s.localEpoch, off: off, hdr: hdr}, nil
	}

	// The writer may have recycled the list while the header was read.
	if !s.epochCurrent() {
		return nil, nil
	}

	metrics.FormatViolations.Inc()
	s.diag.Report("Format violation in %s at offset %d: %s\n", s.path, off, reason)
	util.Error("[%s] format violation in %s at offset %d: %s", s.id, s.path, off, reason)
	s.fault = &Error{
		Op:   "iterate",
		Path: s.path,
		Err:  errors.WithMessagef(ErrFormatViolation, "offset %d: %s", off, reason),
	}
	return nil, s.fault
}
