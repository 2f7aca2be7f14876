package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SegmentOpens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmlog_segment_opens_total",
		Help: "Total number of successful segment attaches",
	})

	SegmentOpenFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shmlog_segment_open_failures_total",
		Help: "Failed segment attaches by error kind",
	}, []string{"kind"})

	SegmentsAttached = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shmlog_segments_attached",
		Help: "Number of segments currently mapped by this process",
	})

	Reattachments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmlog_reattachments_total",
		Help: "Total number of rotations followed to a new segment file",
	})

	RotationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmlog_rotation_failures_total",
		Help: "Total number of rotations that could not be followed",
	})

	EpochInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmlog_epoch_invalidations_total",
		Help: "Iterations abandoned because the writer recycled the chunk list",
	})

	FormatViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmlog_format_violations_total",
		Help: "Chunks that failed validation under an unchanged epoch",
	})

	ChunksVisited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shmlog_chunks_visited_total",
		Help: "Total number of chunk headers visited by iterators",
	})
)
