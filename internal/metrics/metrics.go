// Package metrics exposes tracker counters and gauges to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unklstewy/ads-btrack/pkg/modes"
)

const namespace = "adsb1090"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	messages     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	positions    prometheus.Counter
	evictions    prometheus.Counter
	recorded     prometheus.Counter
	feedLines    prometheus.Counter
}

// New creates the collectors on a fresh registry. tracked reports the
// current number of tracked aircraft and may be nil.
func New(tracked func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Decoded Mode S messages by downlink format.",
		}, []string{"df"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames rejected by the decoder, by reason.",
		}, []string{"reason"}),
		positions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_reports_total",
			Help:      "Airborne position reports recorded.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Aircraft evicted after going silent.",
		}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorded_positions_total",
			Help:      "Resolved positions written to the database.",
		}),
		feedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_lines_total",
			Help:      "Lines read from the raw feed.",
		}),
	}

	m.registry.MustRegister(m.messages, m.decodeErrors, m.positions, m.evictions, m.recorded, m.feedLines)
	if tracked != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_aircraft",
			Help:      "Aircraft currently in the store.",
		}, func() float64 { return float64(tracked()) }))
	}

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FeedLine counts a line read from the feed.
func (m *Metrics) FeedLine() {
	if m != nil {
		m.feedLines.Inc()
	}
}

// Message counts a decoded message.
func (m *Metrics) Message(msg modes.Message) {
	if m != nil {
		m.messages.WithLabelValues(strconv.Itoa(msg.DF)).Inc()
	}
}

// DecodeError counts a rejected frame.
func (m *Metrics) DecodeError(err error) {
	if m != nil {
		m.decodeErrors.WithLabelValues(Reason(err)).Inc()
	}
}

// Position counts a recorded position report.
func (m *Metrics) Position() {
	if m != nil {
		m.positions.Inc()
	}
}

// Evicted counts evicted aircraft.
func (m *Metrics) Evicted(n int) {
	if m != nil {
		m.evictions.Add(float64(n))
	}
}

// Recorded counts positions written by the recorder.
func (m *Metrics) Recorded(n int) {
	if m != nil {
		m.recorded.Add(float64(n))
	}
}

// Reason classifies a decode error into a short label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, modes.ErrFraming):
		return "framing"
	case errors.Is(err, modes.ErrLength):
		return "length"
	case errors.Is(err, modes.ErrCRC):
		return "crc"
	case errors.Is(err, modes.ErrUnknownAddress):
		return "unknown_address"
	case errors.Is(err, modes.ErrUnsupportedDF):
		return "unsupported_df"
	}
	return "other"
}
