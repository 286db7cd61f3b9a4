package observability

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// series is a labelled family of float samples written in the Prometheus text
// format. Counters and gauges are thin views over it.
type series struct {
	name   string
	help   string
	kind   string
	labels []string

	mu   sync.Mutex
	vals map[string]float64
}

func newSeries(name, help, kind string, labels []string) series {
	return series{name: name, help: help, kind: kind, labels: labels, vals: map[string]float64{}}
}

func (s *series) update(values []string, fn func(float64) float64) {
	key := labelString(s.labels, values)
	s.mu.Lock()
	s.vals[key] = fn(s.vals[key])
	s.mu.Unlock()
}

func (s *series) get(values []string) float64 {
	key := labelString(s.labels, values)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vals[key]
}

func (s *series) write(w io.Writer) error {
	if err := writeHeader(w, s.name, s.help, s.kind); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range sortedKeys(s.vals) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", s.name, k, s.vals[k]); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w io.Writer, name, help, kind string) error {
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	return err
}

func add(d float64) func(float64) float64 { return func(v float64) float64 { return v + d } }

func set(d float64) func(float64) float64 { return func(float64) float64 { return d } }

type CounterVec struct{ s series }

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{s: newSeries(name, help, "counter", labels)}
}

func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }

func (c *CounterVec) Add(v float64, values ...string) {
	if c != nil {
		c.s.update(values, add(v))
	}
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.s.write(w)
}

type Counter struct{ s series }

func NewCounter(name, help string) *Counter {
	return &Counter{s: newSeries(name, help, "counter", nil)}
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	if c != nil {
		c.s.update(nil, add(v))
	}
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	return c.s.get(nil)
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.s.write(w)
}

type Gauge struct{ s series }

func NewGauge(name, help string) *Gauge {
	return &Gauge{s: newSeries(name, help, "gauge", nil)}
}

func (g *Gauge) Set(v float64) {
	if g != nil {
		g.s.update(nil, set(v))
	}
}

func (g *Gauge) Inc() {
	if g != nil {
		g.s.update(nil, add(1))
	}
}

func (g *Gauge) Dec() {
	if g != nil {
		g.s.update(nil, add(-1))
	}
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.s.write(w)
}

type GaugeVec struct{ s series }

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{s: newSeries(name, help, "gauge", labels)}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g != nil {
		g.s.update(values, set(v))
	}
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.s.write(w)
}

var defaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// HistogramVec keeps per-bucket counts and makes them cumulative on write.
type HistogramVec struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu    sync.Mutex
	cells map[string]*histogramCell
}

type histogramCell struct {
	values []string
	counts []uint64 // counts[len(buckets)] is the overflow bucket
	sum    float64
	total  uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	return &HistogramVec{name: name, help: help, labels: labels, buckets: buckets, cells: map[string]*histogramCell{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	key := labelString(h.labels, values)
	idx := sort.SearchFloat64s(h.buckets, v)
	h.mu.Lock()
	defer h.mu.Unlock()
	cell, ok := h.cells[key]
	if !ok {
		cell = &histogramCell{values: append([]string(nil), values...), counts: make([]uint64, len(h.buckets)+1)}
		h.cells[key] = cell
	}
	cell.counts[idx]++
	cell.sum += v
	cell.total++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if err := writeHeader(w, h.name, h.help, "histogram"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	leNames := append(append([]string(nil), h.labels...), "le")
	for _, key := range sortedKeys(h.cells) {
		cell := h.cells[key]
		vals := padLabels(cell.values, len(h.labels))
		var cum uint64
		for i, count := range cell.counts {
			cum += count
			le := "+Inf"
			if i < len(h.buckets) {
				le = strconv.FormatFloat(h.buckets[i], 'g', -1, 64)
			}
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, labelString(leNames, append(vals, le)), cum); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n%s_count%s %d\n", h.name, key, cell.sum, h.name, key, cell.total); err != nil {
			return err
		}
	}
	return nil
}

func padLabels(values []string, n int) []string {
	out := make([]string, n, n+1)
	for i := range out {
		out[i] = "unknown"
		if i < len(values) {
			out[i] = values[i]
		}
	}
	return out
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// labelString renders {name="value",...}. Missing values read "unknown".
func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	vals := padLabels(values, len(names))
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + `="` + labelEscaper.Replace(vals[i]) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	return len(status) == 3 && status[0] == '5'
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
