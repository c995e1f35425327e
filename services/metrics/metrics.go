// Package metrics exposes charger telemetry to Prometheus and a small JSON
// status API. Host builds only.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solarcharger-go/bus"
	"solarcharger-go/types"
)

var statuses = []string{"normal", "warning", "shutdown"}

type Metrics struct {
	reg *prometheus.Registry

	panelVolts   prometheus.Gauge
	panelAmps    prometheus.Gauge
	batteryVolts prometheus.Gauge
	panelWatts   prometheus.Gauge
	duty         prometheus.Gauge
	appliedDuty  prometheus.Gauge
	violations   *prometheus.GaugeVec
	sensorFaults prometheus.Gauge
	status       *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	cycles       prometheus.Counter

	mu     sync.RWMutex
	latest *types.ChargerTelemetry
	level  types.ChargerState
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		panelVolts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_panel_volts",
			Help: "Filtered panel voltage.",
		}),
		panelAmps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_panel_amps",
			Help: "Filtered panel current.",
		}),
		batteryVolts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_battery_volts",
			Help: "Filtered battery voltage.",
		}),
		panelWatts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_panel_watts",
			Help: "Panel power.",
		}),
		duty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_duty",
			Help: "Duty proposed by the tracker (0..65535).",
		}),
		appliedDuty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_applied_duty",
			Help: "Duty written to the PWM output (0..65535).",
		}),
		violations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mppt_consecutive_violations",
			Help: "Consecutive over-limit readings by quantity.",
		}, []string{"quantity"}),
		sensorFaults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mppt_consecutive_sensor_faults",
			Help: "Consecutive failed acquisitions.",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mppt_safety_status",
			Help: "1 for the active safety status, 0 otherwise.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mppt_safety_transitions_total",
			Help: "Safety status changes by target status.",
		}, []string{"to"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mppt_cycles_total",
			Help: "Control cycles observed.",
		}),
	}
	m.reg.MustRegister(
		m.panelVolts, m.panelAmps, m.batteryVolts, m.panelWatts,
		m.duty, m.appliedDuty, m.violations, m.sensorFaults,
		m.status, m.transitions, m.cycles,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe records one telemetry snapshot.
func (m *Metrics) Observe(t types.ChargerTelemetry) {
	m.panelVolts.Set(t.PanelVoltage)
	m.panelAmps.Set(t.PanelCurrent)
	m.batteryVolts.Set(t.BatteryVoltage)
	m.panelWatts.Set(t.PanelPower)
	m.duty.Set(float64(t.Duty))
	m.appliedDuty.Set(float64(t.AppliedDuty))
	m.violations.WithLabelValues("overcurrent").Set(float64(t.OvercurrentCount))
	m.violations.WithLabelValues("overvoltage").Set(float64(t.OvervoltageCount))
	m.sensorFaults.Set(float64(t.SensorFaults))
	for _, s := range statuses {
		v := 0.0
		if s == t.Status {
			v = 1
		}
		m.status.WithLabelValues(s).Set(v)
	}

	m.mu.Lock()
	if m.latest == nil || t.Cycle != m.latest.Cycle {
		m.cycles.Inc()
	}
	m.latest = &t
	m.mu.Unlock()
}

// ObserveEvent counts a safety transition.
func (m *Metrics) ObserveEvent(e types.SafetyEvent) {
	m.transitions.WithLabelValues(e.To).Inc()
}

// ObserveState records the run level.
func (m *Metrics) ObserveState(s types.ChargerState) {
	m.mu.Lock()
	m.level = s
	m.mu.Unlock()
}

// Run feeds the collectors from the bus until ctx is done.
func (m *Metrics) Run(ctx context.Context, conn *bus.Connection) error {
	sub := conn.Subscribe(bus.T(types.TopicRoot, bus.MultiWild))
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			switch p := msg.Payload.(type) {
			case types.ChargerTelemetry:
				m.Observe(p)
			case types.SafetyEvent:
				m.ObserveEvent(p)
			case types.ChargerState:
				m.ObserveState(p)
			}
		}
	}
}

// statusDoc is the /status response body.
type statusDoc struct {
	Level     string                  `json:"level"`
	Reason    string                  `json:"reason,omitempty"`
	Telemetry *types.ChargerTelemetry `json:"telemetry,omitempty"`
}

// Router serves /metrics, /status and /health.
func (m *Metrics) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/status", m.statusHandler).Methods("GET")
	r.HandleFunc("/health", healthHandler).Methods("GET")
	return r
}

func (m *Metrics) statusHandler(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	doc := statusDoc{Level: m.level.Level, Reason: m.level.Status, Telemetry: m.latest}
	m.mu.RUnlock()
	if doc.Telemetry == nil && doc.Level == "" {
		http.Error(w, "no telemetry yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
