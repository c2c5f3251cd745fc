package droneid

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alphafox02/antsdr-dji-droneid/metric"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// pipelineMetrics holds Prometheus metrics for the telemetry pipeline.
type pipelineMetrics struct {
	recordsDecoded *prometheus.CounterVec // by component
	decodeErrors   *prometheus.CounterVec // by component and error_type (frame, record)
	framesSkipped  *prometheus.CounterVec // by component (non-telemetry package types)
	auxUpdates     *prometheus.CounterVec // by component
	positionSource *prometheus.CounterVec // by component and source (own/auxiliary/none)
	publishErrors  *prometheus.CounterVec // by component and subject

	processingDuration *prometheus.HistogramVec // by component
}

// newPipelineMetrics creates and registers pipeline metrics with the
// provided registry.
func newPipelineMetrics(registry *metric.MetricsRegistry, componentName string) (*pipelineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &pipelineMetrics{
		recordsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "records_decoded_total",
			Help:      "Telemetry records successfully decoded",
		}, []string{"component"}),

		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "decode_errors_total",
			Help:      "Frames or records dropped by the decoder",
		}, []string{"component", "error_type"}),

		framesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "frames_skipped_total",
			Help:      "Frames skipped because of a non-telemetry package type",
		}, []string{"component"}),

		auxUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "aux_updates_total",
			Help:      "Auxiliary position cache updates applied",
		}, []string{"component"}),

		positionSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "position_source_total",
			Help:      "Published records by resolved position source",
		}, []string{"component", "source"}),

		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "publish_errors_total",
			Help:      "Failed publishes, by output subject",
		}, []string{"component", "subject"}),

		processingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "droneid",
			Subsystem: "pipeline",
			Name:      "processing_duration_seconds",
			Help:      "Per-frame pipeline duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"component"}),
	}

	if err := registry.RegisterCounterVec("droneid_pipeline", "records_decoded", m.recordsDecoded); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("droneid_pipeline", "decode_errors", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("droneid_pipeline", "frames_skipped", m.framesSkipped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("droneid_pipeline", "aux_updates", m.auxUpdates); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("droneid_pipeline", "position_source", m.positionSource); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("droneid_pipeline", "publish_errors", m.publishErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("droneid_pipeline", "processing_duration", m.processingDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *pipelineMetrics) recordDecoded(componentName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.recordsDecoded.WithLabelValues(componentName).Inc()
	m.processingDuration.WithLabelValues(componentName).Observe(duration.Seconds())
}

func (m *pipelineMetrics) recordDecodeError(componentName, errorType string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(componentName, errorType).Inc()
}

func (m *pipelineMetrics) recordFrameSkipped(componentName string) {
	if m == nil {
		return
	}
	m.framesSkipped.WithLabelValues(componentName).Inc()
}

func (m *pipelineMetrics) recordAuxUpdates(componentName string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.auxUpdates.WithLabelValues(componentName).Add(float64(n))
}

func (m *pipelineMetrics) recordPositionSource(componentName string, source types.PositionSource) {
	if m == nil {
		return
	}
	m.positionSource.WithLabelValues(componentName, string(source)).Inc()
}

func (m *pipelineMetrics) recordPublishError(componentName, subject string) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(componentName, subject).Inc()
}
