package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"transmute/internal/formats"
)

// PairStats summarizes conversions for one pair.
type PairStats struct {
	Pair        string        `json:"pair"`
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	TotalTime   time.Duration `json:"total_time"`
	SuccessRate float64       `json:"success_rate"`
	AvgTime     time.Duration `json:"avg_time"`
}

type pairTotals struct {
	count    int
	failures int
	total    time.Duration
}

// Recorder accumulates conversion metrics. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	conversions   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	tasks         *prometheus.CounterVec
	tasksInFlight prometheus.Gauge

	mu    sync.Mutex
	pairs map[formats.Pair]*pairTotals
}

// NewRecorder builds a recorder with collectors registered on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transmute_conversions_total",
				Help: "Conversion step attempts by pair and outcome",
			},
			[]string{"source", "target", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transmute_conversion_duration_seconds",
				Help:    "Conversion step duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"source", "target"},
		),
		tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transmute_batch_tasks_total",
				Help: "Batch tasks reaching a terminal state",
			},
			[]string{"status"},
		),
		tasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "transmute_batch_tasks_in_flight",
				Help: "Batch tasks currently being converted",
			},
		),
		pairs: make(map[formats.Pair]*pairTotals),
	}
}

// Observe records one conversion attempt.
func (r *Recorder) Observe(pair formats.Pair, elapsed time.Duration, ok bool) {
	if r == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	r.conversions.WithLabelValues(string(pair.Source), string(pair.Target), status).Inc()
	r.duration.WithLabelValues(string(pair.Source), string(pair.Target)).Observe(elapsed.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	totals, exists := r.pairs[pair]
	if !exists {
		totals = &pairTotals{}
		r.pairs[pair] = totals
	}
	totals.count++
	totals.total += elapsed
	if !ok {
		totals.failures++
	}
}

// TaskStarted increments the in-flight gauge.
func (r *Recorder) TaskStarted() {
	if r != nil {
		r.tasksInFlight.Inc()
	}
}

// TaskFinished decrements the in-flight gauge and counts the terminal status.
func (r *Recorder) TaskFinished(status string) {
	if r == nil {
		return
	}
	r.tasksInFlight.Dec()
	r.tasks.WithLabelValues(status).Inc()
}

// Snapshot returns per-pair statistics sorted by pair.
func (r *Recorder) Snapshot() []PairStats {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]PairStats, 0, len(r.pairs))
	for pair, totals := range r.pairs {
		stats := PairStats{
			Pair:      pair.String(),
			Count:     totals.count,
			Failures:  totals.failures,
			TotalTime: totals.total,
		}
		if totals.count > 0 {
			stats.SuccessRate = float64(totals.count-totals.failures) / float64(totals.count)
			stats.AvgTime = totals.total / time.Duration(totals.count)
		}
		out = append(out, stats)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}

// Reset clears the in-process statistics and Prometheus series.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.pairs = make(map[formats.Pair]*pairTotals)
	r.mu.Unlock()
	r.conversions.Reset()
	r.duration.Reset()
	r.tasks.Reset()
	r.tasksInFlight.Set(0)
}

// Gatherer exposes the recorder's registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the registry in the Prometheus text format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
