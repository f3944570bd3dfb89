// ABOUTME: Prometheus collectors for API requests and the health monitor
// ABOUTME: Implements client.Recorder and health.Observer so both report through one registry

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// modes lists every value of the mode label so exactly one reads 1
var modes = []string{"websocket", "polling", "stopped"}

// Metrics holds the console's collectors.
type Metrics struct {
	APIRequests    *prometheus.CounterVec
	Connected      prometheus.Gauge
	Reconnects     prometheus.Counter
	AbnormalCloses *prometheus.CounterVec
	Mode           *prometheus.GaugeVec
	Polls          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coven_console_api_requests_total",
				Help: "REST requests sent to the backend by method and status code (0 when no response)",
			},
			[]string{"method", "code"},
		),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coven_console_health_connected",
			Help: "1 when the health monitor sees the backend",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coven_console_health_reconnects_total",
			Help: "Health socket reconnect attempts",
		}),
		AbnormalCloses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coven_console_health_abnormal_closes_total",
				Help: "Health socket closes other than 1000/1001, by close code",
			},
			[]string{"code"},
		),
		Mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coven_console_health_mode",
				Help: "Current health monitor mode",
			},
			[]string{"mode"},
		),
		Polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coven_console_health_polls_total",
				Help: "HTTP health polls by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.APIRequests, m.Connected, m.Reconnects, m.AbnormalCloses, m.Mode, m.Polls)
	return m
}

// ObserveRequest counts a completed REST request.
func (m *Metrics) ObserveRequest(method string, code int) {
	m.APIRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SetConnected records monitor connectivity.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// SetMode marks mode as current.
func (m *Metrics) SetMode(mode string) {
	for _, md := range modes {
		v := 0.0
		if md == mode {
			v = 1
		}
		m.Mode.WithLabelValues(md).Set(v)
	}
}

// Reconnect counts a reconnect attempt.
func (m *Metrics) Reconnect() { m.Reconnects.Inc() }

// AbnormalClose counts an abnormal socket close.
func (m *Metrics) AbnormalClose(code int) {
	m.AbnormalCloses.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Poll counts an HTTP health poll.
func (m *Metrics) Poll(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.Polls.WithLabelValues(result).Inc()
}

// Handler serves the metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
