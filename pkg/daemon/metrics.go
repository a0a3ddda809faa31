package daemon

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

const namespace = "pipetcal"

type metrics struct {
	calibrations *prometheus.CounterVec
	duration     prometheus.Histogram
	aforos       *prometheus.CounterVec
	reloads      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      "Calibration requests by outcome: ok or the error kind.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calibration_duration_seconds",
			Help:      "Time spent computing one calibration.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
		aforos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aforo_verdicts_total",
			Help:      "Evaluated aforos by tolerance verdict.",
		}, []string{"cumple"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.calibrations,
		m.duration,
		m.aforos,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observe(res *gravimetric.Result, err error, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		kind := string(gravimetric.KindOf(err))
		if kind == "" {
			kind = "internal"
		}
		m.calibrations.WithLabelValues(kind).Inc()
		return
	}
	m.calibrations.WithLabelValues("ok").Inc()
	for _, a := range res.Aforos {
		m.aforos.WithLabelValues(strconv.FormatBool(a.Verdict.Within && a.Verdict.SDWithin)).Inc()
	}
}

func (m *metrics) reloaded(err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
}
