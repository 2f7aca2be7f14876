//go:build unix

package segment_test

import (
	"testing"

	"github.com/downfa11-org/shmlog/pkg/segment"
	"github.com/downfa11-org/shmlog/pkg/segment/segmenttest"
)

func TestFind(t *testing.T) {
	im := basicImage()
	s, _, path := openImage(t, im)

	tests := []struct {
		name    string
		class   string
		opts    []segment.Match
		wantOff int
	}{
		{"first of class", "Stat", nil, im.ChunkOffset(0)},
		{"by type", "Stat", []segment.Match{segment.WithType("SMA")}, im.ChunkOffset(2)},
		{"by ident", "Stat", []segment.Match{segment.WithIdent("s0")}, im.ChunkOffset(2)},
		{"type and ident", "Stat", []segment.Match{segment.WithType("SMA"), segment.WithIdent("s0")}, im.ChunkOffset(2)},
		{"empty ident is a value", "Log", []segment.Match{segment.WithIdent("")}, im.ChunkOffset(1)},
		{"no class", "Nope", nil, -1},
		{"type mismatch", "Log", []segment.Match{segment.WithType("MAIN")}, -1},
		{"empty ident skips named", "Stat", []segment.Match{segment.WithIdent("")}, im.ChunkOffset(0)},
		{"class is exact", "Sta", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := s.Find(tt.class, tt.opts...)
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if tt.wantOff < 0 {
				if c != nil {
					t.Fatalf("Find matched chunk at %d; want none", c.Offset())
				}
				return
			}
			if c == nil {
				t.Fatalf("Find found nothing; want offset %d", tt.wantOff)
			}
			if c.Offset() != tt.wantOff {
				t.Errorf("Find offset = %d; want %d", c.Offset(), tt.wantOff)
			}
		})
	}

	// A recycle during the scan ends it without a match.
	segmenttest.SetEpoch(t, path, 99)
	if c, err := s.Find("Stat"); c != nil || err != nil {
		t.Errorf("Find after recycle = %v, %v; want nil, nil", c, err)
	}
}

func TestFindAlloc(t *testing.T) {
	s, _, _ := openImage(t, basicImage())

	p, ok, err := s.FindAlloc("Stat", segment.WithType("SMA"))
	if err != nil || !ok {
		t.Fatalf("FindAlloc = %v, %v", ok, err)
	}
	if string(p[:len("counters")]) != "counters" {
		t.Errorf("payload = %q", p)
	}
	if cap(p) != len(p) {
		t.Errorf("payload capacity %d exceeds its length %d", cap(p), len(p))
	}

	p, ok, err = s.FindAlloc("Missing")
	if err != nil || ok || p != nil {
		t.Errorf("FindAlloc(Missing) = %v, %v, %v", p, ok, err)
	}
}
