package types

import (
	"bytes"
	"encoding/binary"
)

// Segment file layout. All integers are in host byte order because the
// writer and the readers share one machine and the epoch word is read with
// a native atomic load.
const (
	SegmentMagic uint32 = 0x53484d4c // "SHML"
	ChunkMagic   uint32 = 0x43484e4b // "CHNK"

	SegmentHeaderSize = 32 // magic(4) + hdrsize(4) + total(8) + epoch(8) + start(8)
	ChunkHeaderSize   = 32 // magic(4) + len(4) + class(8) + type(8) + ident(8)

	ClassLen = 8
	TypeLen  = 8
	IdentLen = 8
)

// Segment header field offsets.
const (
	OffSegMagic     = 0
	OffSegHdrSize   = 4
	OffSegTotalSize = 8
	OffSegEpoch     = 16
	OffSegStartTime = 24
)

// Chunk header field offsets.
const (
	OffChunkMagic = 0
	OffChunkLen   = 4
	OffChunkClass = 8
	OffChunkType  = OffChunkClass + ClassLen
	OffChunkIdent = OffChunkType + TypeLen
)

// SegmentHeader is a decoded copy of the fixed header at the start of a
// segment. AllocEpoch in a copy is only a snapshot; the live value must be
// read from the mapping.
type SegmentHeader struct {
	Magic      uint32
	HeaderSize uint32
	TotalSize  uint64
	AllocEpoch uint64
	StartTime  int64
}

// ChunkHeader is a decoded copy of one sub-allocation header.
type ChunkHeader struct {
	Magic  uint32
	Length uint32
	Class  string
	Type   string
	Ident  string
}

// PayloadLen returns the number of payload bytes following the header.
func (h ChunkHeader) PayloadLen() int {
	if h.Length < ChunkHeaderSize {
		return 0
	}
	return int(h.Length) - ChunkHeaderSize
}

// DecodeSegmentHeader decodes b, which must hold at least SegmentHeaderSize bytes.
func DecodeSegmentHeader(b []byte) SegmentHeader {
	_ = b[SegmentHeaderSize-1]
	return SegmentHeader{
		Magic:      binary.NativeEndian.Uint32(b[OffSegMagic:]),
		HeaderSize: binary.NativeEndian.Uint32(b[OffSegHdrSize:]),
		TotalSize:  binary.NativeEndian.Uint64(b[OffSegTotalSize:]),
		AllocEpoch: binary.NativeEndian.Uint64(b[OffSegEpoch:]),
		StartTime:  int64(binary.NativeEndian.Uint64(b[OffSegStartTime:])),
	}
}

// EncodeSegmentHeader writes h into the first SegmentHeaderSize bytes of b.
func EncodeSegmentHeader(b []byte, h SegmentHeader) {
	_ = b[SegmentHeaderSize-1]
	binary.NativeEndian.PutUint32(b[OffSegMagic:], h.Magic)
	binary.NativeEndian.PutUint32(b[OffSegHdrSize:], h.HeaderSize)
	binary.NativeEndian.PutUint64(b[OffSegTotalSize:], h.TotalSize)
	binary.NativeEndian.PutUint64(b[OffSegEpoch:], h.AllocEpoch)
	binary.NativeEndian.PutUint64(b[OffSegStartTime:], uint64(h.StartTime))
}

// DecodeChunkHeader decodes b, which must hold at least ChunkHeaderSize bytes.
func DecodeChunkHeader(b []byte) ChunkHeader {
	_ = b[ChunkHeaderSize-1]
	return ChunkHeader{
		Magic:  binary.NativeEndian.Uint32(b[OffChunkMagic:]),
		Length: binary.NativeEndian.Uint32(b[OffChunkLen:]),
		Class:  cString(b[OffChunkClass : OffChunkClass+ClassLen]),
		Type:   cString(b[OffChunkType : OffChunkType+TypeLen]),
		Ident:  cString(b[OffChunkIdent : OffChunkIdent+IdentLen]),
	}
}

// EncodeChunkHeader writes h into the first ChunkHeaderSize bytes of b.
// Names longer than their field are truncated.
func EncodeChunkHeader(b []byte, h ChunkHeader) {
	_ = b[ChunkHeaderSize-1]
	binary.NativeEndian.PutUint32(b[OffChunkMagic:], h.Magic)
	binary.NativeEndian.PutUint32(b[OffChunkLen:], h.Length)
	putCString(b[OffChunkClass:OffChunkClass+ClassLen], h.Class)
	putCString(b[OffChunkType:OffChunkType+TypeLen], h.Type)
	putCString(b[OffChunkIdent:OffChunkIdent+IdentLen], h.Ident)
}

// cString returns the bytes of b up to the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putCString(dst []byte, s string) {
	n := copy(dst, s)
	clear(dst[n:])
}
