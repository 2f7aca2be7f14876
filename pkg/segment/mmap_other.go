//go:build !unix

package segment

import "os"

type fileStat struct {
	identity fileIdentity
	regular  bool
	size     int64
}

func statFile(f *os.File) (fileStat, error) {
	return fileStat{}, ErrUnsupported
}

func statPath(path string) (fileStat, error) {
	return fileStat{}, ErrUnsupported
}

func mapRegion(f *os.File, size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func unmapRegion(mem []byte) error {
	return nil
}
