package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the timeline service.
// Playback coordinator counters are added by Playback.
type Metrics struct {
	registry                  *prometheus.Registry
	requestsTotal             prometheus.Counter
	errorsTotal               prometheus.Counter
	requestDuration           *prometheus.HistogramVec
	recordingsRegisteredTotal prometheus.Counter
	activeCameras             prometheus.Gauge

	playbackOnce sync.Once
	playback     *PlaybackObserver
}

// PlaybackObserver counts playback coordinator activity. It implements
// playback.Observer.
type PlaybackObserver struct {
	seeksTotal              *prometheus.CounterVec
	seeksCoalescedTotal     prometheus.Counter
	previewUnavailableTotal prometheus.Counter
	playbackErrorsTotal     prometheus.Counter
	seekWatchdogTotal       prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nvr_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
		recordingsRegisteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_recordings_registered_total",
			Help: "Total number of recording segments successfully registered",
		}),
		activeCameras: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nvr_active_cameras",
			Help: "Number of cameras with at least one recording",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.requestDuration,
		m.recordingsRegisteredTotal,
		m.activeCameras,
	)
	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveRequest records the latency of one request. route is the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncRecordingsRegistered increments the recordings registered counter.
func (m *Metrics) IncRecordingsRegistered() {
	m.recordingsRegisteredTotal.Inc()
}

// SetActiveCameras sets the active cameras gauge.
func (m *Metrics) SetActiveCameras(n int) {
	m.activeCameras.Set(float64(n))
}

// Playback returns the coordinator observer, registering its counters on
// first use. Processes that never run a coordinator do not export them.
func (m *Metrics) Playback() *PlaybackObserver {
	m.playbackOnce.Do(func() {
		p := &PlaybackObserver{
			seeksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "nvr_playback_seeks_total",
				Help: "Seeks issued against a player, by player",
			}, []string{"player"}),
			seeksCoalescedTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "nvr_playback_seeks_coalesced_total",
				Help: "Scrub targets dropped because a newer one superseded them",
			}),
			previewUnavailableTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "nvr_playback_preview_unavailable_total",
				Help: "Scrub starts that fell back to full-resolution seeking",
			}),
			playbackErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "nvr_playback_errors_total",
				Help: "Main player seeks rejected after the clamped retry",
			}),
			seekWatchdogTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "nvr_playback_seek_watchdog_total",
				Help: "Preview seeks released by the watchdog",
			}),
		}
		m.registry.MustRegister(
			p.seeksTotal,
			p.seeksCoalescedTotal,
			p.previewUnavailableTotal,
			p.playbackErrorsTotal,
			p.seekWatchdogTotal,
		)
		m.playback = p
	})
	return m.playback
}

func (p *PlaybackObserver) SeekIssued(player string) {
	p.seeksTotal.WithLabelValues(player).Inc()
}

func (p *PlaybackObserver) SeekCoalesced() {
	p.seeksCoalescedTotal.Inc()
}

func (p *PlaybackObserver) PreviewUnavailable() {
	p.previewUnavailableTotal.Inc()
}

func (p *PlaybackObserver) PlaybackError() {
	p.playbackErrorsTotal.Inc()
}

func (p *PlaybackObserver) WatchdogFired() {
	p.seekWatchdogTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active cameras).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
