package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/route"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "crossing"
	metricsSubsystem = "intersection"
)

// PrometheusObserver exports controller activity as Prometheus metrics
type PrometheusObserver struct {
	// ArrivalsTotal counts vehicles calling enter by route
	ArrivalsTotal *prometheus.CounterVec

	// AdmissionsTotal counts admitted vehicles by route and turn
	AdmissionsTotal *prometheus.CounterVec

	// WaitsTotal counts vehicles that had to block by route
	WaitsTotal *prometheus.CounterVec

	// AbandonedTotal counts waiters that gave up by route
	AbandonedTotal *prometheus.CounterVec

	// RejectedTotal counts enter calls with an invalid route
	RejectedTotal prometheus.Counter

	// ErrorsTotal counts protocol errors detected by the controller
	ErrorsTotal prometheus.Counter

	// WaitSeconds tracks time from arrival to admission
	WaitSeconds *prometheus.HistogramVec

	// CrossingSeconds tracks time from admission to departure
	CrossingSeconds *prometheus.HistogramVec

	// Occupants is the number of vehicles inside the intersection
	Occupants prometheus.Gauge

	// Waiting is the number of vehicles blocked in enter
	Waiting prometheus.Gauge

	mutex   sync.Mutex
	waiting map[string]struct{}
}

// NewPrometheusObserver creates the collectors and registers them with
// reg, or with the default registerer when reg is nil
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		ArrivalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "arrivals_total",
				Help:      "Total vehicles calling enter by route",
			},
			[]string{"route"},
		),
		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "admissions_total",
				Help:      "Total vehicles admitted by route and turn",
			},
			[]string{"route", "turn"},
		),
		WaitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "waits_total",
				Help:      "Total vehicles that blocked before admission by route",
			},
			[]string{"route"},
		),
		AbandonedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "abandoned_total",
				Help:      "Total waiting vehicles that gave up by route",
			},
			[]string{"route"},
		),
		RejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "rejected_total",
				Help:      "Total enter calls with an invalid route",
			},
		),
		ErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "errors_total",
				Help:      "Total enter/leave protocol errors",
			},
		),
		WaitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "wait_seconds",
				Help:      "Time from arrival to admission in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
			},
			[]string{"route"},
		),
		CrossingSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "crossing_seconds",
				Help:      "Time from admission to departure in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"route"},
		),
		Occupants: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "occupants",
				Help:      "Vehicles currently inside the intersection",
			},
		),
		Waiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "waiting",
				Help:      "Vehicles currently blocked in enter",
			},
		),
		waiting: make(map[string]struct{}),
	}

	collectors := []prometheus.Collector{
		o.ArrivalsTotal,
		o.AdmissionsTotal,
		o.WaitsTotal,
		o.AbandonedTotal,
		o.RejectedTotal,
		o.ErrorsTotal,
		o.WaitSeconds,
		o.CrossingSeconds,
		o.Occupants,
		o.Waiting,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register intersection metrics: %w", err)
		}
	}
	return o, nil
}

// OnArrive counts an arrival
func (o *PrometheusObserver) OnArrive(v *occupancy.Vehicle) {
	o.ArrivalsTotal.WithLabelValues(v.Route.String()).Inc()
}

// OnWait counts a vehicle that blocked
func (o *PrometheusObserver) OnWait(v *occupancy.Vehicle, _ *occupancy.Vehicle) {
	o.WaitsTotal.WithLabelValues(v.Route.String()).Inc()

	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.waiting[v.ID] = struct{}{}
	o.Waiting.Set(float64(len(o.waiting)))
}

// OnAdmit records an admission
func (o *PrometheusObserver) OnAdmit(v *occupancy.Vehicle, occupants int) {
	r := v.Route.String()
	o.AdmissionsTotal.WithLabelValues(r, v.Route.Turn().String()).Inc()
	o.WaitSeconds.WithLabelValues(r).Observe(v.WaitTime().Seconds())
	o.Occupants.Set(float64(occupants))
	o.doneWaiting(v)
}

// OnDepart records a departure
func (o *PrometheusObserver) OnDepart(v *occupancy.Vehicle, occupants int) {
	o.CrossingSeconds.WithLabelValues(v.Route.String()).Observe(v.CrossingTime().Seconds())
	o.Occupants.Set(float64(occupants))
}

// OnAbandon counts a waiter giving up
func (o *PrometheusObserver) OnAbandon(v *occupancy.Vehicle, _ error) {
	o.AbandonedTotal.WithLabelValues(v.Route.String()).Inc()
	o.doneWaiting(v)
}

// OnRejected counts an invalid route
func (o *PrometheusObserver) OnRejected(route.Direction, route.Direction, error) {
	o.RejectedTotal.Inc()
}

// OnError counts a protocol error
func (o *PrometheusObserver) OnError(error) {
	o.ErrorsTotal.Inc()
}

// OnClosed implements the controller observer contract
func (o *PrometheusObserver) OnClosed() {}

func (o *PrometheusObserver) doneWaiting(v *occupancy.Vehicle) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if _, ok := o.waiting[v.ID]; ok {
		delete(o.waiting, v.ID)
		o.Waiting.Set(float64(len(o.waiting)))
	}
}
