//go:build unix

package segment

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileStat is the subset of stat(2) the opener needs.
type fileStat struct {
	identity fileIdentity
	regular  bool
	size     int64
}

func fromStatT(st *unix.Stat_t) fileStat {
	return fileStat{
		identity: fileIdentity{dev: uint64(st.Dev), ino: uint64(st.Ino)},
		regular:  st.Mode&unix.S_IFMT == unix.S_IFREG,
		size:     st.Size,
	}
}

func statFile(f *os.File) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return fileStat{}, err
	}
	return fromStatT(&st), nil
}

func statPath(path string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileStat{}, err
	}
	return fromStatT(&st), nil
}

// mapRegion maps size bytes of f read-only and shared, so writer updates
// are visible without remapping.
func mapRegion(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

func unmapRegion(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}
