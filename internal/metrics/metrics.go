package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collector's instrumentation on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	ReadingsCollected prometheus.Counter
	PollsSkipped      prometheus.Counter
	CyclesDetected    *prometheus.CounterVec
	ReportsSent       *prometheus.CounterVec
	ReportFailures    *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	IndoorTemperature prometheus.Gauge
	TargetTemperature prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		Registry: reg,
		ReadingsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hvac_readings_collected_total",
			Help: "Raw sensor readings collected.",
		}),
		PollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hvac_polls_skipped_total",
			Help: "Polls skipped because required sensor data was missing.",
		}),
		CyclesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hvac_cycles_detected_total",
			Help: "Completed HVAC cycles by action.",
		}, []string{"action"}),
		ReportsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hvac_reports_sent_total",
			Help: "Reports delivered to the analytics backend by kind.",
		}, []string{"kind"}),
		ReportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hvac_report_failures_total",
			Help: "Report delivery failures by kind.",
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hvac_pending_readings",
			Help: "Raw readings waiting to be sent.",
		}),
		IndoorTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hvac_indoor_temperature",
			Help: "Latest indoor temperature reading.",
		}),
		TargetTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hvac_target_temperature",
			Help: "Latest thermostat setpoint.",
		}),
	}

	reg.MustRegister(m.ReadingsCollected)
	reg.MustRegister(m.PollsSkipped)
	reg.MustRegister(m.CyclesDetected)
	reg.MustRegister(m.ReportsSent)
	reg.MustRegister(m.ReportFailures)
	reg.MustRegister(m.QueueDepth)
	reg.MustRegister(m.IndoorTemperature)
	reg.MustRegister(m.TargetTemperature)

	return m
}
