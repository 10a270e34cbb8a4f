// Package metrics публикует метрики конвейера инспекции в формате Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"car-inspect/internal/domain/port"
)

const namespace = "inspect"

// Pipeline реализует port.PipelineRecorder поверх собственного реестра.
type Pipeline struct {
	registry *prometheus.Registry

	oracleCalls   *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec
	framesOffered prometheus.Counter
	framesDropped *prometheus.CounterVec
	inference     prometheus.Histogram
	detections    prometheus.Counter
	busy          prometheus.Gauge
}

// New создаёт набор метрик и регистрирует их.
func New() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle invocations by oracle and result",
		}, []string{"oracle", "result"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_latency_seconds",
			Help:      "Oracle invocation latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"oracle"}),
		framesOffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_frames_offered_total",
			Help:      "Frames offered to the live scheduler",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_frames_dropped_total",
			Help:      "Frames dropped by the live scheduler by reason",
		}, []string{"reason"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_inference_seconds",
			Help:      "Live frame inference latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_detections_total",
			Help:      "Detections produced by the live path",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_busy",
			Help:      "1 while a live inference is in flight",
		}),
	}

	p.registry.MustRegister(
		p.oracleCalls,
		p.oracleLatency,
		p.framesOffered,
		p.framesDropped,
		p.inference,
		p.detections,
		p.busy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// причины известны заранее, пусть серии существуют с нуля
	p.framesDropped.WithLabelValues(port.DropThrottled)
	p.framesDropped.WithLabelValues(port.DropBusy)

	return p
}

func (p *Pipeline) OracleCall(oracle string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.oracleCalls.WithLabelValues(oracle, result).Inc()
	p.oracleLatency.WithLabelValues(oracle).Observe(took.Seconds())
}

func (p *Pipeline) FrameOffered() {
	p.framesOffered.Inc()
}

func (p *Pipeline) FrameDropped(reason string) {
	p.framesDropped.WithLabelValues(reason).Inc()
}

func (p *Pipeline) InferenceDone(took time.Duration, detections int) {
	p.inference.Observe(took.Seconds())
	p.detections.Add(float64(detections))
}

func (p *Pipeline) SetBusy(busy bool) {
	if busy {
		p.busy.Set(1)
		return
	}
	p.busy.Set(0)
}

// Registry возвращает реестр, например для тестов.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// Handler возвращает HTTP-обработчик Prometheus.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ port.PipelineRecorder = (*Pipeline)(nil)
