package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/arloliu/go-beamline/internal/task"
	"github.com/arloliu/go-beamline/logger"
)

const (
	startDocument = "start"
	stopDocument  = "stop"
)

// document is the wire envelope for one (name, document) pair.
type document struct {
	Name string `json:"name"`
	Doc  any    `json:"doc"`
}

// PublisherOption configures a DocumentPublisher.
type PublisherOption func(*DocumentPublisher)

// WithLogger sets the logger. The default is the global logger instance.
func WithLogger(l logger.Logger) PublisherOption {
	return func(p *DocumentPublisher) { p.logger = l }
}

// WithProducer supplies the async producer instead of building one from the
// configuration, for tests against a mock producer. Close still closes it.
func WithProducer(producer sarama.AsyncProducer) PublisherOption {
	return func(p *DocumentPublisher) { p.producer = producer }
}

// DocumentPublisher streams run-engine documents to the beamline's document
// topic.
//
// Documents belonging to one run share a partition key, taken from the run's
// start-document uid, so consumers see them in order. Delivery is
// asynchronous; two supervised goroutines drain the producer's success and
// error channels and update the metrics.
type DocumentPublisher struct {
	topic    string
	abort    bool
	instance string
	producer sarama.AsyncProducer
	logger   logger.Logger
	taskMgr  *task.Manager
	metrics  PublisherMetrics

	// mu guards the current run key and the sticky delivery error.
	mu          sync.Mutex
	runKey      string
	deliveryErr error

	closeMu sync.RWMutex
	closed  atomic.Bool
}

// NewDocumentPublisher creates a publisher for the configured beamline and
// starts the delivery drain tasks.
//
// ctx is the parent context of the drain tasks. Teardown goes through Close,
// which flushes the producer and ends the drains; canceling ctx alone does
// not release the producer.
func NewDocumentPublisher(ctx context.Context, cfg *Config, opts ...PublisherOption) (*DocumentPublisher, error) {
	if cfg == nil {
		return nil, errors.New("kafka: config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &DocumentPublisher{
		topic:    cfg.Topic(),
		abort:    *cfg.AbortOnError,
		instance: uuid.NewString(),
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("topic", p.topic)

	if p.producer == nil {
		producer, err := sarama.NewAsyncProducer(cfg.BootstrapServers, cfg.saramaConfig())
		if err != nil {
			return nil, fmt.Errorf("kafka: create producer: %w", err)
		}
		p.producer = producer
	}

	p.taskMgr = task.NewManager(ctx, p.logger)
	if err := p.taskMgr.Start("kafka-success-drain", p.drainSuccesses); err != nil {
		_ = p.producer.Close()
		return nil, err
	}
	if err := p.taskMgr.Start("kafka-error-drain", p.drainErrors); err != nil {
		_ = p.producer.Close()
		p.taskMgr.Stop()
		p.taskMgr.Wait()
		return nil, err
	}

	return p, nil
}

// Publish hands one (name, document) pair to the producer.
//
// The document is marshaled to JSON and keyed by the current run uid. A
// start document opens a new run: its uid becomes the key for every document
// until the matching stop document, and any sticky delivery failure from the
// previous run is cleared.
//
// When the configuration sets abort_run_on_kafka_exception, a delivery
// failure of an earlier document in the run surfaces here as
// ErrDeliveryFailed.
func (p *DocumentPublisher) Publish(name string, doc any) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed.Load() {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(document{Name: name, Doc: doc})
	if err != nil {
		return fmt.Errorf("kafka: marshal %s document: %w", name, err)
	}

	key, stickyErr := p.runKeyFor(name, payload)
	if p.abort && stickyErr != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, stickyErr)
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	p.metrics.incPublishCount()

	return nil
}

// runKeyFor updates the run tracking for one document and returns the
// partition key to use along with any sticky delivery error.
func (p *DocumentPublisher) runKeyFor(name string, payload []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == startDocument {
		p.deliveryErr = nil
		p.runKey = extractRunUID(payload)
		if p.runKey == "" {
			p.runKey = uuid.NewString()
		}
	}

	key := p.runKey
	if key == "" {
		// a document outside any run still needs a stable key
		key = p.instance
	}
	if name == stopDocument {
		p.runKey = ""
	}

	return key, p.deliveryErr
}

// Close flushes buffered documents, closes the producer and waits for the
// drain tasks to finish.
func (p *DocumentPublisher) Close() error {
	p.closeMu.Lock()
	swapped := p.closed.CompareAndSwap(false, true)
	p.closeMu.Unlock()
	if !swapped {
		return ErrPublisherClosed
	}

	err := p.producer.Close()
	p.taskMgr.Stop()
	p.taskMgr.Wait()

	return err
}

// GetMetrics returns the metrics instance of the publisher.
func (p *DocumentPublisher) GetMetrics() *PublisherMetrics {
	return &p.metrics
}

// GetLogger returns the logger instance of the publisher.
func (p *DocumentPublisher) GetLogger() logger.Logger {
	return p.logger
}

// Topic returns the topic documents are published to.
func (p *DocumentPublisher) Topic() string {
	return p.topic
}

// drainSuccesses consumes broker acknowledgements until the producer closes.
func (p *DocumentPublisher) drainSuccesses() bool {
	msg, ok := <-p.producer.Successes()
	if !ok {
		return false
	}
	p.metrics.incDeliveredCount()
	p.logger.Debug("document delivered", "partition", msg.Partition, "offset", msg.Offset)

	return true
}

// drainErrors consumes delivery failures until the producer closes. The
// first failure of a run is kept so Publish can abort the run.
func (p *DocumentPublisher) drainErrors() bool {
	perr, ok := <-p.producer.Errors()
	if !ok {
		return false
	}
	p.metrics.incFailedCount()
	p.logger.Error("document delivery failed", "error", perr.Err)

	if p.abort {
		p.mu.Lock()
		if p.deliveryErr == nil {
			p.deliveryErr = perr.Err
		}
		p.mu.Unlock()
	}

	return true
}

func extractRunUID(payload []byte) string {
	var env struct {
		Doc struct {
			UID string `json:"uid"`
		} `json:"doc"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return ""
	}

	return env.Doc.UID
}
