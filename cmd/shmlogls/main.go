package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/downfa11-org/shmlog/pkg/config"
	"github.com/downfa11-org/shmlog/pkg/diag"
	"github.com/downfa11-org/shmlog/pkg/metrics"
	"github.com/downfa11-org/shmlog/pkg/segment"
	"github.com/downfa11-org/shmlog/util"
	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		util.Fatal("Failed to load config: %v", err)
	}

	classes, err := glob.Compile(cfg.ClassGlob)
	if err != nil {
		util.Fatal("Bad class pattern %q: %v", cfg.ClassGlob, err)
	}

	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	}

	s := segment.New(cfg)
	s.SetDiag(diag.Logger())
	defer s.Delete()

	if err := s.SetInstance(cfg.InstanceName); err != nil {
		util.Fatal("%v", err)
	}

	if err := s.Open(true); err != nil {
		util.Fatal("%v", err)
	}
	list(s, classes)
	if cfg.Once || cfg.DisableRotation {
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(cfg.RotationPoll())
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			return
		case <-ticker.C:
			if !s.Attached() {
				if err := s.Open(false); err == nil {
					list(s, classes)
				}
				continue
			}
			out, err := s.Reopen(true)
			switch {
			case err != nil:
				util.Warn("Rotation of %s failed: %v", s.Path(), err)
			case out == segment.Reattached:
				list(s, classes)
			case !s.Valid():
				if err := s.Reattach(true); err != nil {
					util.Warn("Reattach %s: %v", s.Path(), err)
					continue
				}
				list(s, classes)
			}
		}
	}
}

// list prints one line per chunk whose class matches.
func list(s *segment.Segment, classes glob.Glob) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s epoch=%d size=%s started %s\n",
		s.Path(), s.LocalEpoch(), humanize.IBytes(uint64(s.TotalSize())), humanize.Time(s.StartTime()))
	fmt.Fprintln(tw, "OFFSET\tCLASS\tTYPE\tIDENT\tPAYLOAD")
	for c, err := range s.Chunks() {
		if err != nil {
			util.Error("%v", err)
			break
		}
		if !classes.Match(c.Class()) {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			c.Offset(), c.Class(), c.Type(), c.Ident(), humanize.IBytes(uint64(c.PayloadLen())))
	}
	tw.Flush()
}
