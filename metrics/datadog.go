package metrics

import (
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/pkg/errors"
)

// DefaultNamespace prefixes every metric sent to statsd.
const DefaultNamespace = "lockbox."

var _ MetricsReporter = (*DataDogMetricsReporter)(nil)

// DataDogMetricsReporter sends metrics to a DogStatsD agent.
type DataDogMetricsReporter struct {
	client *statsd.Client
}

// NewDataDogMetricsReporter reports to the statsd agent at addr. Metric names
// are prefixed with DefaultNamespace unless opts set another one.
func NewDataDogMetricsReporter(addr string, opts ...statsd.Option) (*DataDogMetricsReporter, error) {
	opts = append([]statsd.Option{statsd.WithNamespace(DefaultNamespace)}, opts...)
	c, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "metrics: creating statsd client for %s", addr)
	}
	return &DataDogMetricsReporter{client: c}, nil
}

func (r *DataDogMetricsReporter) Count(name string, value int64, tags map[string]string, rate float64) error {
	return r.client.Count(name, value, convertTags(tags), rate)
}

func (r *DataDogMetricsReporter) Gauge(name string, value float64, tags map[string]string, rate float64) error {
	return r.client.Gauge(name, value, convertTags(tags), rate)
}

func (r *DataDogMetricsReporter) Histogram(name string, value float64, tags map[string]string, rate float64) error {
	return r.client.Histogram(name, value, convertTags(tags), rate)
}

func (r *DataDogMetricsReporter) Set(name string, value string, tags map[string]string, rate float64) error {
	return r.client.Set(name, value, convertTags(tags), rate)
}

func (r *DataDogMetricsReporter) TimeInMilliseconds(name string, value float64, tags map[string]string, rate float64) error {
	return r.client.TimeInMilliseconds(name, value, convertTags(tags), rate)
}

// Close flushes buffered metrics and closes the connection.
func (r *DataDogMetricsReporter) Close() error {
	return r.client.Close()
}

// convertTags turns {"Name":"Value"} into ["name:value"], sorted so the same
// tags always produce the same packet.
func convertTags(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	result := make([]string, 0, len(tags))
	for k, v := range tags {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		result = append(result, k+":"+v)
	}
	sort.Strings(result)
	return result
}
