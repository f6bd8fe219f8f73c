// Package metrics exposes the Prometheus counters and histograms the
// compile pool and CLI report against.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the only mutable process-wide state the ambient stack
// introduces beyond internal/cache's fastcache instance. Its counters
// are atomic by design (prometheus/client_golang), so it is safe to
// share across vm/pool's worker goroutines.
type Recorder struct {
	compiled        *prometheus.CounterVec
	compileDuration prometheus.Histogram
	instructions    prometheus.Counter
}

// NewRecorder registers a fresh set of metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test binaries.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		compiled: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "gvmssa",
			Name:      "functions_compiled_total",
			Help:      "Number of functions that reached ssa.CompileFunction, by outcome.",
		}, []string{"outcome"}),
		compileDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "gvmssa",
			Name:      "compile_duration_seconds",
			Help:      "Wall-clock time spent inside ssa.CompileFunction, for successful compiles.",
			Buckets:   prometheus.DefBuckets,
		}),
		instructions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "gvmssa",
			Name:      "ir_instructions_emitted_total",
			Help:      "Total IR instructions emitted across all successful compiles.",
		}),
	}
}

// RecordSuccess records a successful compile of dur duration emitting n
// IR instructions.
func (r *Recorder) RecordSuccess(dur time.Duration, n int) {
	if r == nil {
		return
	}
	r.compiled.WithLabelValues("ok").Inc()
	r.compileDuration.Observe(dur.Seconds())
	r.instructions.Add(float64(n))
}

// RecordFailure records a MalformedBytecode compile failure, bucketed by
// its Reason so operators can tell truncated operands from stack
// underflows at a glance.
func (r *Recorder) RecordFailure(reason string) {
	if r == nil {
		return
	}
	r.compiled.WithLabelValues("error:" + reason).Inc()
}
