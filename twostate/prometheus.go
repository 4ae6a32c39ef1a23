package twostate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes an actuator's ActuatorMetrics as prometheus metrics.
// Register it with a prometheus.Registerer:
//
//	registry.MustRegister(twostate.NewCollector(act))
type Collector struct {
	act *Actuator

	setTotal        *prometheus.Desc
	fastPathTotal   *prometheus.Desc
	setSuccessTotal *prometheus.Desc
	setFailureTotal *prometheus.Desc
	writeTotal      *prometheus.Desc
	retryTotal      *prometheus.Desc
	exhaustedTotal  *prometheus.Desc
	disabledTotal   *prometheus.Desc
	canceledTotal   *prometheus.Desc
	active          *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a prometheus collector for the given actuator. The
// device name is attached as the "device" label on every metric.
func NewCollector(act *Actuator) *Collector {
	labels := prometheus.Labels{"device": act.Name()}

	return &Collector{
		act: act,
		setTotal: prometheus.NewDesc(
			"beamline_twostate_set_total",
			"Number of set operations started.",
			nil, labels,
		),
		fastPathTotal: prometheus.NewDesc(
			"beamline_twostate_fast_path_total",
			"Number of sets resolved immediately because the readback already reported the target.",
			nil, labels,
		),
		setSuccessTotal: prometheus.NewDesc(
			"beamline_twostate_set_success_total",
			"Number of set operations that resolved successfully.",
			nil, labels,
		),
		setFailureTotal: prometheus.NewDesc(
			"beamline_twostate_set_failure_total",
			"Number of set operations that resolved with an error.",
			nil, labels,
		),
		writeTotal: prometheus.NewDesc(
			"beamline_twostate_command_write_total",
			"Number of activation writes issued to the command channels.",
			nil, labels,
		),
		retryTotal: prometheus.NewDesc(
			"beamline_twostate_retry_total",
			"Number of dropped commands that were re-issued.",
			nil, labels,
		),
		exhaustedTotal: prometheus.NewDesc(
			"beamline_twostate_retries_exhausted_total",
			"Number of set operations that ran out of retry budget.",
			nil, labels,
		),
		disabledTotal: prometheus.NewDesc(
			"beamline_twostate_disabled_total",
			"Number of set operations aborted by the facility enable channel.",
			nil, labels,
		),
		canceledTotal: prometheus.NewDesc(
			"beamline_twostate_canceled_total",
			"Number of set operations resolved by Cancel.",
			nil, labels,
		),
		active: prometheus.NewDesc(
			"beamline_twostate_active",
			"Whether a set operation is currently in flight.",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.setTotal
	ch <- c.fastPathTotal
	ch <- c.setSuccessTotal
	ch <- c.setFailureTotal
	ch <- c.writeTotal
	ch <- c.retryTotal
	ch <- c.exhaustedTotal
	ch <- c.disabledTotal
	ch <- c.canceledTotal
	ch <- c.active
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.act.GetMetrics()

	ch <- prometheus.MustNewConstMetric(c.setTotal, prometheus.CounterValue, float64(m.SetCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.fastPathTotal, prometheus.CounterValue, float64(m.FastPathCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.setSuccessTotal, prometheus.CounterValue, float64(m.SetSuccessCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.setFailureTotal, prometheus.CounterValue, float64(m.SetFailureCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.writeTotal, prometheus.CounterValue, float64(m.CommandWriteCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.retryTotal, prometheus.CounterValue, float64(m.RetryCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.exhaustedTotal, prometheus.CounterValue, float64(m.ExhaustedCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.disabledTotal, prometheus.CounterValue, float64(m.DisabledCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.canceledTotal, prometheus.CounterValue, float64(m.CanceledCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(m.ActiveGauge.Load()))
}
