package instance_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/shmlog/pkg/instance"
)

func TestResolve(t *testing.T) {
	r := instance.NewResolver("/base", "seg.vsm")

	tests := []struct {
		name string
		want string
	}{
		{"cache1", filepath.Join("/base", "cache1", "seg.vsm")},
		{"/run/cache2/", filepath.Join("/run/cache2", "seg.vsm")},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolveDefaultsToHostname(t *testing.T) {
	host, err := os.Hostname()
	if err != nil {
		t.Skipf("no hostname: %v", err)
	}
	got, err := instance.NewResolver("", "").Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(instance.DefaultBaseDir, host, instance.DefaultFileName)
	if got != want {
		t.Errorf("Resolve(\"\") = %q; want %q", got, want)
	}
}

func TestResolveRejectsRelativePaths(t *testing.T) {
	r := instance.NewResolver("/base", "")
	for _, name := range []string{"a/b", "..", "."} {
		if _, err := r.Resolve(name); !errors.Is(err, instance.ErrInvalidName) {
			t.Errorf("Resolve(%q) err = %v; want ErrInvalidName", name, err)
		}
	}
}
