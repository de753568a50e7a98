package telemetry

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

const metricsNamespace = "zone."

// Metrics wraps the DataDog statsd client so the rest of the module never imports it directly.
type Metrics struct {
	client ddstatsd.ClientInterface
}

// NopMetrics returns a sink that drops every metric.
func NopMetrics() *Metrics {
	return &Metrics{client: &ddstatsd.NoOpClient{}}
}

func newMetrics(opts Options) (*Metrics, error) {
	if opts.StatsdAddress == "" {
		return NopMetrics(), nil
	}

	ddopts := []ddstatsd.Option{ddstatsd.WithNamespace(metricsNamespace)}
	if len(opts.StatsdTags) > 0 {
		ddopts = append(ddopts, ddstatsd.WithTags(opts.StatsdTags))
	}

	client, err := ddstatsd.New(opts.StatsdAddress, ddopts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create statsd client")
	}
	return &Metrics{client: client}, nil
}

// Timing records the time elapsed since start under name.
func (m *Metrics) Timing(name string, start time.Time, tags ...string) {
	if err := m.client.Timing(name, time.Since(start), tags, 1); err != nil {
		log.Logger.Warn().Err(err).Str("metric", name).Msg("failed to emit timing")
	}
}

// Gauge records an absolute value under name.
func (m *Metrics) Gauge(name string, value float64, tags ...string) {
	if err := m.client.Gauge(name, value, tags, 1); err != nil {
		log.Logger.Warn().Err(err).Str("metric", name).Msg("failed to emit gauge")
	}
}

// Count adds delta to the counter under name.
func (m *Metrics) Count(name string, delta int64, tags ...string) {
	if err := m.client.Count(name, delta, tags, 1); err != nil {
		log.Logger.Warn().Err(err).Str("metric", name).Msg("failed to emit count")
	}
}

func (m *Metrics) Close() error {
	return eris.Wrap(m.client.Close(), "failed to close statsd client")
}
