package metrics

import "sync"

type Metric struct {
	Name string
	Tags map[string]string
	Rate float64
}

type IntMetric struct {
	Metric
	Value int64
}

type FloatMetric struct {
	Metric
	Value float64
}

// FakeMetricsReporter records counts and timings in memory for tests.
type FakeMetricsReporter struct {
	NoopMetricsReporter

	mu      sync.Mutex
	counts  []IntMetric
	timings []FloatMetric
}

func NewFakeMetricsReporter() *FakeMetricsReporter {
	return &FakeMetricsReporter{}
}

func (r *FakeMetricsReporter) Count(name string, value int64, tags map[string]string, rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, IntMetric{Metric{name, tags, rate}, value})
	return nil
}

func (r *FakeMetricsReporter) TimeInMilliseconds(name string, value float64, tags map[string]string, rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings = append(r.timings, FloatMetric{Metric{name, tags, rate}, value})
	return nil
}

// CountOf sums every count reported under name.
func (r *FakeMetricsReporter) CountOf(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, m := range r.counts {
		if m.Name == name {
			total += m.Value
		}
	}
	return total
}

// Timings returns the timings reported under name.
func (r *FakeMetricsReporter) Timings(name string) []FloatMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FloatMetric
	for _, m := range r.timings {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
