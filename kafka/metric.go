package kafka

import (
	"sync/atomic"
)

// PublisherMetrics contains atomic metrics for a document publisher.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type PublisherMetrics struct {
	// PublishCount indicates the number of documents handed to the producer.
	PublishCount atomic.Uint64
	// DeliveredCount indicates the number of documents the broker acknowledged.
	DeliveredCount atomic.Uint64
	// FailedCount indicates the number of documents that could not be delivered.
	FailedCount atomic.Uint64
}

func (m *PublisherMetrics) incPublishCount() {
	m.PublishCount.Add(1)
}

func (m *PublisherMetrics) incDeliveredCount() {
	m.DeliveredCount.Add(1)
}

func (m *PublisherMetrics) incFailedCount() {
	m.FailedCount.Add(1)
}
