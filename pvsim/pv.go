package pvsim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-beamline/internal/util"
	"github.com/arloliu/go-beamline/pv"
)

// PutFunc intercepts a client write to a PV. It receives the raw value the
// client wrote and returns the value to store and post instead. Returning an
// error rejects the write; nothing is stored or posted.
type PutFunc func(raw int32) (int32, error)

// PVOption configures a PV at construction time.
type PVOption func(*PV)

// WithReadOnly marks the PV read-only for clients. The owning device can
// still update it with Post.
func WithReadOnly() PVOption {
	return func(p *PV) {
		p.readOnly = true
	}
}

// WithPutter installs fn as the PV's write interceptor.
func WithPutter(fn PutFunc) PVOption {
	return func(p *PV) {
		p.putter = fn
	}
}

// PV is a simulated process variable.
//
// Monitor dispatch is synchronous: Post returns after every subscriber has
// seen the event, and events for one PV are delivered in posting order.
type PV struct {
	name     string
	labels   []string
	readOnly bool
	putter   PutFunc

	mu    sync.Mutex // guards value and ts
	value int32
	ts    time.Time

	dispatchMu sync.Mutex // serializes store+dispatch so events arrive in posting order

	subs   *xsync.MapOf[uint64, pv.MonitorFunc]
	nextID atomic.Uint64
}

var _ pv.Channel = (*PV)(nil)

// NewEnumPV creates an enum PV with the given label table; initial is the
// starting enum index.
func NewEnumPV(name string, labels []string, initial int32, opts ...PVOption) *PV {
	p := &PV{
		name:   name,
		labels: util.CloneSlice(labels, 0),
		value:  initial,
		ts:     time.Now(),
		subs:   xsync.NewMapOf[uint64, pv.MonitorFunc](),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// NewIntPV creates a plain integer PV with no enum metadata.
func NewIntPV(name string, initial int32, opts ...PVOption) *PV {
	p := &PV{
		name:  name,
		value: initial,
		ts:    time.Now(),
		subs:  xsync.NewMapOf[uint64, pv.MonitorFunc](),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the full PV name.
func (p *PV) Name() string {
	return p.name
}

// Read returns the current value.
func (p *PV) Read() (pv.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.valueLocked(), nil
}

// Raw returns the stored raw value without enum decoding.
func (p *PV) Raw() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.value
}

// Write sends a raw value to the PV as a control-system client would. The
// putter hook, when present, chooses the stored value; the stored value is
// then posted to all subscribers.
func (p *PV) Write(raw int32) error {
	if p.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, p.name)
	}
	if err := p.checkRange(raw); err != nil {
		return err
	}

	stored := raw
	if p.putter != nil {
		v, err := p.putter(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteRejected, p.name, err)
		}
		stored = v
	}

	p.Post(stored)

	return nil
}

// Post stores raw and notifies every subscriber, unconditionally. It is the
// device-side update path: it bypasses the read-only flag and the putter,
// and it posts even when raw equals the stored value.
func (p *PV) Post(raw int32) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	p.mu.Lock()
	p.value = raw
	p.ts = time.Now()
	v := p.valueLocked()
	p.mu.Unlock()

	p.subs.Range(func(_ uint64, fn pv.MonitorFunc) bool {
		fn(v)
		return true
	})
}

// EnumLabels returns a copy of the PV's enum label table.
func (p *PV) EnumLabels() ([]string, error) {
	if p.labels == nil {
		return nil, fmt.Errorf("%w: %s", pv.ErrNoEnumLabels, p.name)
	}

	return util.CloneSlice(p.labels, 0), nil
}

// Subscribe registers fn for monitor events. No initial event is delivered.
func (p *PV) Subscribe(fn pv.MonitorFunc) (pv.Subscription, error) {
	if fn == nil {
		return 0, fmt.Errorf("pvsim: nil monitor func for %s", p.name)
	}

	id := p.nextID.Add(1)
	p.subs.Store(id, fn)

	return pv.Subscription(id), nil
}

// Unsubscribe cancels a subscription. Unsubscribing an unknown or already
// canceled subscription is a no-op.
func (p *PV) Unsubscribe(sub pv.Subscription) error {
	p.subs.Delete(uint64(sub))
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (p *PV) SubscriberCount() int {
	return p.subs.Size()
}

func (p *PV) checkRange(raw int32) error {
	if p.labels == nil {
		return nil
	}
	if raw < 0 || int(raw) >= len(p.labels) {
		return fmt.Errorf("%w: write %d to %s with %d labels", pv.ErrLabelIndex, raw, p.name, len(p.labels))
	}

	return nil
}

func (p *PV) valueLocked() pv.Value {
	v := pv.Value{Raw: p.value, Time: p.ts}
	if p.labels != nil && p.value >= 0 && int(p.value) < len(p.labels) {
		v.Label = p.labels[p.value]
	}

	return v
}
