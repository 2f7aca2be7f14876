package segment

import (
	"time"

	"github.com/downfa11-org/shmlog/pkg/metrics"
	"github.com/downfa11-org/shmlog/util"
)

// Outcome is the result of a rotation check.
type Outcome int

const (
	// Unchanged means the path still names the mapped file, or that this
	// could not be determined.
	Unchanged Outcome = iota
	// Reattached means the handle now maps the replacement file.
	Reattached
	// Failed means the old segment was released but the new one could not
	// be attached; the handle is detached.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Reattached:
		return "reattached"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reopen checks whether the segment path now refers to a different file
// than the one mapped and, if so, moves the handle over to it.
//
// A failing stat leaves the current mapping in place and reports
// Unchanged. After a rotation the new file is given reopenRetries silent
// attempts to finish initialising before one last attempt that reports
// through the diagnostic sink when reportErrors is set.
func (s *Segment) Reopen(reportErrors bool) (Outcome, error) {
	if s.mem == nil {
		return Failed, &Error{Op: "reopen", Path: s.path, Err: ErrNotAttached}
	}

	st, err := statPath(s.path)
	if err != nil {
		util.Debug("[%s] rotation check on %s: %v", s.id, s.path, err)
		return Unchanged, nil
	}
	if st.identity == s.identity {
		return Unchanged, nil
	}

	util.Info("[%s] %s rotated (inode %d -> %d)", s.id, s.path, s.identity.ino, st.identity.ino)
	if err := s.Close(); err != nil {
		util.Warn("[%s] close rotated segment: %v", s.id, err)
	}

	for i := 0; i < s.reopenRetries; i++ {
		if s.retryHook != nil {
			s.retryHook(i)
		}
		if err := s.Open(false); err == nil {
			metrics.Reattachments.Inc()
			return Reattached, nil
		}
		if s.reopenBackoff > 0 {
			time.Sleep(s.reopenBackoff)
		}
	}

	if s.retryHook != nil {
		s.retryHook(s.reopenRetries)
	}
	if err := s.Open(reportErrors); err != nil {
		metrics.RotationFailures.Inc()
		return Failed, err
	}
	metrics.Reattachments.Inc()
	return Reattached, nil
}
