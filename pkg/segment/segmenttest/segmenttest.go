// Package segmenttest writes segment files for tests, standing in for the
// writer process.
package segmenttest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/shmlog/pkg/types"
)

// Chunk describes one sub-allocation to lay out. Zero Magic and Length
// select the valid defaults.
type Chunk struct {
	Class   string
	Type    string
	Ident   string
	Payload []byte

	Magic  uint32
	Length uint32
}

// Image describes a whole segment file. Zero Magic, HeaderSize and
// TotalSize select valid defaults computed from the chunks.
type Image struct {
	Magic      uint32
	HeaderSize uint32
	TotalSize  uint64
	Epoch      uint64
	StartTime  int64
	Chunks     []Chunk

	// Truncate cuts the file to this many bytes when non-zero, leaving the
	// header's TotalSize as it is.
	Truncate int
}

// Bytes renders the image.
func (im Image) Bytes() []byte {
	hdrSize := im.HeaderSize
	if hdrSize == 0 {
		hdrSize = types.SegmentHeaderSize
	}

	size := int(hdrSize)
	for _, c := range im.Chunks {
		size += chunkLen(c)
	}
	total := im.TotalSize
	if total == 0 {
		total = uint64(size)
	}
	if int(total) > size {
		size = int(total)
	}

	buf := make([]byte, size)
	magic := im.Magic
	if magic == 0 {
		magic = types.SegmentMagic
	}
	types.EncodeSegmentHeader(buf, types.SegmentHeader{
		Magic:      magic,
		HeaderSize: hdrSize,
		TotalSize:  total,
		AllocEpoch: im.Epoch,
		StartTime:  im.StartTime,
	})

	off := int(hdrSize)
	for _, c := range im.Chunks {
		n := chunkLen(c)
		cm := c.Magic
		if cm == 0 {
			cm = types.ChunkMagic
		}
		length := c.Length
		if length == 0 {
			length = uint32(n)
		}
		types.EncodeChunkHeader(buf[off:], types.ChunkHeader{
			Magic:  cm,
			Length: length,
			Class:  c.Class,
			Type:   c.Type,
			Ident:  c.Ident,
		})
		copy(buf[off+types.ChunkHeaderSize:], c.Payload)
		off += n
	}

	if im.Truncate > 0 && im.Truncate < len(buf) {
		buf = buf[:im.Truncate]
	}
	return buf
}

// chunkLen is the space the chunk occupies in the file, rounded up to 8.
func chunkLen(c Chunk) int {
	n := types.ChunkHeaderSize + len(c.Payload)
	return (n + 7) &^ 7
}

// ChunkOffset returns the file offset of chunk i in im.
func (im Image) ChunkOffset(i int) int {
	off := int(im.HeaderSize)
	if off == 0 {
		off = types.SegmentHeaderSize
	}
	for _, c := range im.Chunks[:i] {
		off += chunkLen(c)
	}
	return off
}

// Write creates path holding im.
func Write(t testing.TB, path string, im Image) {
	t.Helper()
	if err := os.WriteFile(path, im.Bytes(), 0o644); err != nil {
		t.Fatalf("write segment %s: %v", path, err)
	}
}

// Replace atomically swaps path for a new file holding im, the way a log
// rotation does. The new file has a different inode.
func Replace(t testing.TB, path string, im Image) {
	t.Helper()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rotate-*")
	if err != nil {
		t.Fatalf("create replacement: %v", err)
	}
	if _, err := tmp.Write(im.Bytes()); err != nil {
		tmp.Close()
		t.Fatalf("write replacement: %v", err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatalf("close replacement: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		t.Fatalf("rename replacement: %v", err)
	}
}

// WriteAt overwrites bytes of an existing segment file in place. Readers
// with the file mapped shared observe the change.
func WriteAt(t testing.TB, path string, off int64, data []byte) {
	t.Helper()
	if err := PatchFile(path, off, data); err != nil {
		t.Fatalf("patch %s at %d: %v", path, off, err)
	}
}

// PatchFile is WriteAt for goroutines that cannot fail the test directly.
func PatchFile(path string, off int64, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, off); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EpochBytes encodes epoch as it is stored in the segment header.
func EpochBytes(epoch uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, epoch)
	return b
}

// SetEpoch stores a new allocation epoch in the live file, as the writer
// does when it recycles the chunk list.
func SetEpoch(t testing.TB, path string, epoch uint64) {
	t.Helper()
	WriteAt(t, path, types.OffSegEpoch, EpochBytes(epoch))
}

// SetMagic overwrites the segment magic in the live file.
func SetMagic(t testing.TB, path string, magic uint32) {
	t.Helper()
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], magic)
	WriteAt(t, path, types.OffSegMagic, b[:])
}

// SetChunkMagic overwrites the magic of the chunk at off in the live file.
func SetChunkMagic(t testing.TB, path string, off int, magic uint32) {
	t.Helper()
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], magic)
	WriteAt(t, path, int64(off+types.OffChunkMagic), b[:])
}
