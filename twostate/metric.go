package twostate

import (
	"sync/atomic"
)

// ActuatorMetrics contains atomic metrics for a two-state actuator.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ActuatorMetrics struct {
	// SetCount indicates the number of set operations started.
	SetCount atomic.Uint64
	// FastPathCount indicates the number of sets resolved without an operation
	// because the readback already reported the target.
	FastPathCount atomic.Uint64
	// SetSuccessCount indicates the number of set operations that resolved successfully.
	SetSuccessCount atomic.Uint64
	// SetFailureCount indicates the number of set operations that resolved with an error.
	SetFailureCount atomic.Uint64

	// CommandWriteCount indicates the number of activation writes issued.
	CommandWriteCount atomic.Uint64
	// RetryCount indicates the number of dropped commands that were re-issued.
	RetryCount atomic.Uint64
	// ExhaustedCount indicates the number of operations that ran out of retry budget.
	ExhaustedCount atomic.Uint64
	// DisabledCount indicates the number of operations aborted by the facility enable channel.
	DisabledCount atomic.Uint64
	// CanceledCount indicates the number of operations resolved by Cancel.
	CanceledCount atomic.Uint64

	// ActiveGauge indicates whether a set operation is currently in flight.
	ActiveGauge atomic.Int64
}

func (m *ActuatorMetrics) incSetCount() {
	m.SetCount.Add(1)
}

func (m *ActuatorMetrics) incFastPathCount() {
	m.FastPathCount.Add(1)
}

func (m *ActuatorMetrics) incSetSuccessCount() {
	m.SetSuccessCount.Add(1)
}

func (m *ActuatorMetrics) incSetFailureCount() {
	m.SetFailureCount.Add(1)
}

func (m *ActuatorMetrics) incCommandWriteCount() {
	m.CommandWriteCount.Add(1)
}

func (m *ActuatorMetrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *ActuatorMetrics) incExhaustedCount() {
	m.ExhaustedCount.Add(1)
}

func (m *ActuatorMetrics) incDisabledCount() {
	m.DisabledCount.Add(1)
}

func (m *ActuatorMetrics) incCanceledCount() {
	m.CanceledCount.Add(1)
}

func (m *ActuatorMetrics) setActiveGauge(active bool) {
	if active {
		m.ActiveGauge.Store(1)
	} else {
		m.ActiveGauge.Store(0)
	}
}
