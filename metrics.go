package av

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMetricsNamespace prefixes every metric name.
const DefaultMetricsNamespace = "av"

type avMetrics struct {
	errors *prometheus.CounterVec

	packetsRead    prometheus.Counter
	packetsWritten prometheus.Counter
	framesDecoded  prometheus.Counter
	packetsEncoded prometheus.Counter
	readTimeouts   prometheus.Counter

	resamplerSamplesIn  prometheus.Counter
	resamplerSamplesOut prometheus.Counter
	resamplerResets     prometheus.Counter

	rescalerFrames prometheus.Counter

	trackRTPPackets prometheus.Counter
}

// newMetrics builds unregistered collectors.
func newMetrics(namespace string) *avMetrics {
	f := promauto.With(nil)
	return &avMetrics{
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors returned, by kind and category",
		}, []string{"kind", "category"}),
		packetsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_read_total",
			Help:      "Packets returned by demuxers",
		}),
		packetsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_written_total",
			Help:      "Packets handed to muxers",
		}),
		framesDecoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Frames produced by decoders",
		}),
		packetsEncoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_encoded_total",
			Help:      "Packets produced by encoders",
		}),
		readTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_timeouts_total",
			Help:      "Reads aborted by the reading timeout",
		}),
		resamplerSamplesIn: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resampler",
			Name:      "samples_in_total",
			Help:      "Samples per channel pushed into resamplers",
		}),
		resamplerSamplesOut: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resampler",
			Name:      "samples_out_total",
			Help:      "Samples per channel popped from resamplers",
		}),
		resamplerResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resampler",
			Name:      "pts_resets_total",
			Help:      "Input discontinuities that restarted output pts",
		}),
		rescalerFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rescaler",
			Name:      "frames_total",
			Help:      "Frames converted by video rescalers",
		}),
		trackRTPPackets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "track",
			Name:      "rtp_packets_total",
			Help:      "RTP packets written to WebRTC bindings",
		}),
	}
}

func (m *avMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.errors,
		m.packetsRead, m.packetsWritten, m.framesDecoded, m.packetsEncoded, m.readTimeouts,
		m.resamplerSamplesIn, m.resamplerSamplesOut, m.resamplerResets,
		m.rescalerFrames,
		m.trackRTPPackets,
	}
}

var (
	metrics = newMetrics(DefaultMetricsNamespace)

	metricsMu         sync.Mutex
	metricsRegistered bool
)

// RegisterMetrics registers the package collectors with reg. Registering
// twice with the same registry is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	for _, c := range metrics.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	metricsRegistered = true
	return nil
}

// setMetricsNamespace rebuilds the collectors under ns. It is a no-op once
// they were registered.
func setMetricsNamespace(ns string) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsRegistered || ns == "" {
		return
	}
	metrics = newMetrics(ns)
}
