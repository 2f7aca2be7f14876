//go:build unix

package segment_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/shmlog/pkg/config"
	"github.com/downfa11-org/shmlog/pkg/segment"
	"github.com/downfa11-org/shmlog/pkg/segment/segmenttest"
	"github.com/downfa11-org/shmlog/pkg/types"
)

func rotatedImage() segmenttest.Image {
	return segmenttest.Image{
		Epoch: 1,
		Chunks: []segmenttest.Chunk{
			{Class: "Log", Payload: []byte("fresh")},
			{Class: "Stat", Type: "MAIN", Payload: []byte("new")},
		},
	}
}

func TestReopenUnchanged(t *testing.T) {
	s, _, _ := openImage(t, basicImage())
	c, _ := s.First()

	out, err := s.Reopen(true)
	if err != nil || out != segment.Unchanged {
		t.Fatalf("Reopen = %v, %v; want unchanged", out, err)
	}
	if !c.Valid() {
		t.Errorf("unchanged reopen invalidated chunks")
	}
}

func TestReopenStatFailureKeepsMapping(t *testing.T) {
	s, _, path := openImage(t, basicImage())
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	out, err := s.Reopen(true)
	if err != nil || out != segment.Unchanged {
		t.Fatalf("Reopen = %v, %v; want unchanged", out, err)
	}
	if got := collect(t, s); len(got) != 3 {
		t.Errorf("walked %d chunks on the unlinked mapping; want 3", len(got))
	}
}

func TestReopenFollowsRotation(t *testing.T) {
	s, _, path := openImage(t, basicImage())
	old, _ := s.First()

	segmenttest.Replace(t, path, rotatedImage())

	out, err := s.Reopen(true)
	if err != nil || out != segment.Reattached {
		t.Fatalf("Reopen = %v, %v; want reattached", out, err)
	}
	if old.Valid() {
		t.Errorf("chunk from the rotated-out segment still valid")
	}
	if _, err := old.Payload(); !errors.Is(err, segment.ErrStaleChunk) {
		t.Errorf("old Payload err = %v; want ErrStaleChunk", err)
	}
	if _, err := s.Advance(old); !errors.Is(err, segment.ErrStaleChunk) {
		t.Errorf("Advance(old) err = %v; want ErrStaleChunk", err)
	}

	p, ok, err := s.FindAlloc("Log")
	if err != nil || !ok || string(p[:5]) != "fresh" {
		t.Fatalf("FindAlloc after rotation = %q, %v, %v", p, ok, err)
	}
	if c, _ := s.Find("Stat", segment.WithType("SMA")); c != nil {
		t.Errorf("found a chunk that only existed in the old segment")
	}

	out, err = s.Reopen(true)
	if err != nil || out != segment.Unchanged {
		t.Errorf("second Reopen = %v, %v; want unchanged", out, err)
	}
}

func TestReopenRetriesUntilValid(t *testing.T) {
	s, rec, path := openImage(t, basicImage())

	bad := rotatedImage()
	bad.Magic = 0x1
	segmenttest.Replace(t, path, bad)

	var attempts []int
	segment.SetRetryHook(s, func(attempt int) {
		attempts = append(attempts, attempt)
		if attempt == 2 {
			segmenttest.SetMagic(t, path, types.SegmentMagic)
		}
	})

	out, err := s.Reopen(true)
	if err != nil || out != segment.Reattached {
		t.Fatalf("Reopen = %v, %v; want reattached", out, err)
	}
	if len(attempts) != 3 {
		t.Errorf("made %d attempts; want 3", len(attempts))
	}
	if len(rec.msgs) != 0 {
		t.Errorf("silent retries reported %q", rec.msgs)
	}
	if c, _ := s.Find("Log"); c == nil {
		t.Errorf("new segment not readable after retries")
	}
}

func TestReopenGivesUp(t *testing.T) {
	s, rec, path := openImage(t, basicImage())

	bad := rotatedImage()
	bad.Magic = 0x1
	segmenttest.Replace(t, path, bad)

	attempts := 0
	segment.SetRetryHook(s, func(int) { attempts++ })

	out, err := s.Reopen(true)
	if out != segment.Failed || !errors.Is(err, segment.ErrBadMagic) {
		t.Fatalf("Reopen = %v, %v; want failed with ErrBadMagic", out, err)
	}
	// Three silent attempts from testConfig plus the reporting one.
	if attempts != 4 {
		t.Errorf("made %d attempts; want 4", attempts)
	}
	if len(rec.msgs) != 1 || !rec.contains("Wrong magic number") {
		t.Errorf("diagnostics = %q; want one bad magic report", rec.msgs)
	}
	if s.Attached() {
		t.Errorf("failed reopen left a mapping behind")
	}

	if _, err := s.Reopen(true); !errors.Is(err, segment.ErrNotAttached) {
		t.Errorf("Reopen on detached handle err = %v; want ErrNotAttached", err)
	}

	// Once the writer publishes a valid file, a plain Open recovers.
	segmenttest.Replace(t, path, rotatedImage())
	if err := s.Open(true); err != nil {
		t.Fatalf("Open after failed rotation: %v", err)
	}
}

func TestReopenReplacementNotAFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "_.vsm")
	segmenttest.Write(t, path, basicImage())
	s, rec := newSegment(t, path)
	if err := s.Open(false); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Replacement is a directory: stat succeeds with a new identity but it
	// can never be opened as a segment.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	out, err := s.Reopen(false)
	if out != segment.Failed || !errors.Is(err, segment.ErrNotRegularFile) {
		t.Fatalf("Reopen = %v, %v", out, err)
	}
	if len(rec.msgs) != 0 {
		t.Errorf("reportErrors=false still reported %q", rec.msgs)
	}
}

func TestReopenRetriesWithZeroConfig(t *testing.T) {
	tests := []struct {
		name     string
		retries  int
		fixAt    int
		want     segment.Outcome
		attempts int
	}{
		{"zero selects default retries", 0, 1, segment.Reattached, 2},
		{"negative disables retries", -1, 1, segment.Failed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "_.vsm")
			segmenttest.Write(t, path, basicImage())

			s := segment.New(&config.Config{
				EpochWaitTimeoutMS:  100,
				EpochPollIntervalMS: 5,
				ReopenRetries:       tt.retries,
				ReopenBackoffMS:     1,
			})
			s.SetPath(path)
			defer s.Delete()
			if err := s.Open(false); err != nil {
				t.Fatalf("Open: %v", err)
			}

			bad := rotatedImage()
			bad.Magic = 0x1
			segmenttest.Replace(t, path, bad)

			attempts := 0
			segment.SetRetryHook(s, func(attempt int) {
				attempts++
				if attempt == tt.fixAt {
					segmenttest.SetMagic(t, path, types.SegmentMagic)
				}
			})

			out, _ := s.Reopen(false)
			if out != tt.want || attempts != tt.attempts {
				t.Errorf("Reopen = %v after %d attempts; want %v after %d", out, attempts, tt.want, tt.attempts)
			}
		})
	}
}
