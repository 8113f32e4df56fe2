package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request kinds reported in requests_total
const (
	KindRequest   = "request"
	KindReRequest = "rerequest"
	KindClose     = "close"
)

// Metrics holds the provider collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	namespace   string
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	reqCnt      *prometheus.CounterVec
	respCnt     *prometheus.CounterVec
	unsupported *prometheus.CounterVec
	openStreams *prometheus.GaugeVec
	sessions    prometheus.Gauge
	dispatchDur *prometheus.HistogramVec
	frames      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// Frame directions reported in transport_frames_total
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Admin HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	reqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "requests_total", Help: "Inbound stream messages by domain and kind"}, []string{"domain", "kind"})
	respCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "responses_total", Help: "Responses handed to the transport"}, []string{"domain", "msg_type"})
	unsupported := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "unsupported_requests_total", Help: "Requests for a domain without a manager"}, []string{"domain"})
	r.MustRegister(reqCnt, respCnt, unsupported)

	openStreams := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "open_streams", Help: "Stream items currently tracked"}, []string{"domain"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_active", Help: "Accepted client sessions"})
	dispatchDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "dispatch_duration_seconds", Buckets: cfg.Buckets}, []string{"event"})
	r.MustRegister(openStreams, sessions, dispatchDur)

	frames := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "transport_frames_total", Help: "Websocket frames by direction"}, []string{"direction"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "transport_dropped_total", Help: "Inbound frames dropped by the transport"}, []string{"reason"})
	r.MustRegister(frames, dropped)

	return &Metrics{
		registry:    r,
		namespace:   ns,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		reqCnt:      reqCnt,
		respCnt:     respCnt,
		unsupported: unsupported,
		openStreams: openStreams,
		sessions:    sessions,
		dispatchDur: dispatchDur,
		frames:      frames,
		dropped:     dropped,
	}
}

func (m *Metrics) RequestReceived(domain, kind string) {
	if m == nil {
		return
	}
	m.reqCnt.WithLabelValues(domain, kind).Inc()
}

func (m *Metrics) ResponseSent(domain, msgType string) {
	if m == nil {
		return
	}
	m.respCnt.WithLabelValues(domain, msgType).Inc()
}

func (m *Metrics) UnsupportedRequest(domain string) {
	if m == nil {
		return
	}
	m.unsupported.WithLabelValues(domain).Inc()
}

func (m *Metrics) StreamOpened(domain string) {
	if m == nil {
		return
	}
	m.openStreams.WithLabelValues(domain).Inc()
}

func (m *Metrics) StreamClosed(domain string) {
	if m == nil {
		return
	}
	m.openStreams.WithLabelValues(domain).Dec()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// ObserveDispatch records how long the dispatcher spent on one event.
func (m *Metrics) ObserveDispatch(event string, since time.Time) {
	if m == nil {
		return
	}
	m.dispatchDur.WithLabelValues(event).Observe(time.Since(since).Seconds())
}

func (m *Metrics) FrameTransferred(direction string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction).Inc()
}

// FrameDropped counts an inbound frame the transport refused, e.g. "rate_limit" or "decode".
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// Middleware records admin HTTP requests.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
