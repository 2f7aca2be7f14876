// Package instance maps a human-supplied instance name to the path of the
// segment file the writer for that instance maintains.
package instance

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultBaseDir  = "/var/lib/shmlog"
	DefaultFileName = "_.vsm"
)

var ErrInvalidName = errors.New("invalid instance name")

// Resolver turns an instance name into a segment file path.
type Resolver interface {
	Resolve(name string) (string, error)
}

// DirResolver places each instance in its own directory below BaseDir.
//
// An empty name selects the host name. An absolute name is taken as the
// instance directory itself.
type DirResolver struct {
	BaseDir  string
	FileName string
}

func NewResolver(baseDir, fileName string) *DirResolver {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = DefaultBaseDir
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = DefaultFileName
	}
	return &DirResolver{BaseDir: baseDir, FileName: fileName}
}

func (r *DirResolver) Resolve(name string) (string, error) {
	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			return "", errors.Wrap(err, "resolve default instance")
		}
		name = host
	}

	if filepath.IsAbs(name) {
		return filepath.Join(filepath.Clean(name), r.FileName), nil
	}
	if name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return filepath.Join(r.BaseDir, name, r.FileName), nil
}
