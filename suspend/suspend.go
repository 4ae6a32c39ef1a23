package suspend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/arloliu/go-beamline/internal/pool"
	"github.com/arloliu/go-beamline/internal/task"
	"github.com/arloliu/go-beamline/logger"
	"github.com/arloliu/go-beamline/pv"
)

// Suspender states.
const (
	StateArmed      = "armed"
	StateTripped    = "tripped"
	StateRecovering = "recovering"
)

const (
	eventTrip  = "trip"
	eventClear = "clear"
	eventRearm = "rearm"
)

var (
	// ErrAlreadyStarted is returned by Start when the suspender is running.
	ErrAlreadyStarted = errors.New("suspend: suspender already started")
	// ErrNotStarted is returned by Close when the suspender never started.
	ErrNotStarted = errors.New("suspend: suspender not started")
)

// Stoppable is the device surface a suspender drives. *twostate.Actuator
// satisfies it.
type Stoppable interface {
	Name() string
	Stop(ctx context.Context) error
	Resume(ctx context.Context) error
}

// TripFunc decides from a monitor event whether the watched condition is
// unhealthy.
type TripFunc func(v pv.Value) bool

// TripWhenHigh trips while the channel reads nonzero, for fault indicator
// channels that latch high.
func TripWhenHigh() TripFunc {
	return func(v pv.Value) bool { return v.Raw != 0 }
}

// TripWhenLow trips while the channel reads zero, for permit channels that
// drop low.
func TripWhenLow() TripFunc {
	return func(v pv.Value) bool { return v.Raw == 0 }
}

// TripBelow trips while the channel reads below threshold, for beam-current
// channels.
func TripBelow(threshold int32) TripFunc {
	return func(v pv.Value) bool { return v.Raw < threshold }
}

// Option configures a Suspender.
type Option func(*Suspender)

// WithName sets the suspender name used in logs and the task name.
// The default is the watched channel's name.
func WithName(name string) Option {
	return func(s *Suspender) { s.name = name }
}

// WithRecoveryDelay sets how long the watched condition must stay healthy
// before devices are resumed. The default is 5 seconds.
func WithRecoveryDelay(d time.Duration) Option {
	return func(s *Suspender) { s.recoveryDelay = d }
}

// WithLogger sets the logger. The default is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return func(s *Suspender) { s.logger = l }
}

// Suspender watches one channel and stops registered devices while the trip
// predicate holds, resuming them after the recovery delay.
type Suspender struct {
	name          string
	ch            pv.Channel
	trip          TripFunc
	recoveryDelay time.Duration
	logger        logger.Logger

	machine *fsm.FSM
	taskMgr *task.Manager
	ctx     context.Context

	devMu   sync.Mutex
	devices []Stoppable

	latestMu sync.Mutex
	latest   pv.Value

	notify  chan struct{}
	started atomic.Bool
	sub     pv.Subscription

	// rearm timer, owned by the run loop goroutine
	rearmTimer *time.Timer
}

// New creates a Suspender watching ch through the trip predicate. Devices
// are attached with Register before Start.
func New(ch pv.Channel, trip TripFunc, opts ...Option) (*Suspender, error) {
	if ch == nil {
		return nil, errors.New("suspend: channel is nil")
	}
	if trip == nil {
		return nil, errors.New("suspend: trip predicate is nil")
	}

	s := &Suspender{
		ch:            ch,
		trip:          trip,
		name:          ch.Name(),
		recoveryDelay: 5 * time.Second,
		logger:        logger.GetLogger(),
		notify:        make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("suspender", s.name)

	s.machine = fsm.NewFSM(
		StateArmed,
		fsm.Events{
			{Name: eventTrip, Src: []string{StateArmed, StateRecovering}, Dst: StateTripped},
			{Name: eventClear, Src: []string{StateTripped}, Dst: StateRecovering},
			{Name: eventRearm, Src: []string{StateRecovering}, Dst: StateArmed},
		},
		fsm.Callbacks{
			"enter_" + StateTripped:    s.onTripped,
			"enter_" + StateRecovering: s.onRecovering,
			"enter_" + StateArmed:      s.onArmed,
		},
	)

	return s, nil
}

// Register attaches devices to the suspender. Register must be called before
// Start.
func (s *Suspender) Register(devs ...Stoppable) {
	s.devMu.Lock()
	defer s.devMu.Unlock()

	s.devices = append(s.devices, devs...)
}

// Start subscribes to the watched channel, evaluates its current value, and
// launches the supervised run loop.
func (s *Suspender) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.taskMgr = task.NewManager(ctx, s.logger)
	s.ctx = s.taskMgr.Context()

	sub, err := s.ch.Subscribe(s.onEvent)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.sub = sub

	// the subscription delivers no initial event; prime with a read
	v, err := s.ch.Read()
	if err != nil {
		_ = s.ch.Unsubscribe(sub)
		s.started.Store(false)

		return err
	}
	s.onEvent(v)

	if err := s.taskMgr.Start("suspender-"+s.name, s.loop); err != nil {
		_ = s.ch.Unsubscribe(sub)
		s.started.Store(false)

		return err
	}

	return nil
}

// Close unsubscribes from the watched channel and stops the run loop. It
// does not resume stopped devices.
func (s *Suspender) Close() error {
	if !s.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}

	if err := s.ch.Unsubscribe(s.sub); err != nil {
		s.logger.Debug("unsubscribe failed", "error", err)
	}

	s.taskMgr.Stop()
	s.taskMgr.Wait()

	return nil
}

// State returns the current machine state: armed, tripped, or recovering.
func (s *Suspender) State() string {
	return s.machine.Current()
}

// Tripped reports whether the suspender currently holds its devices stopped.
func (s *Suspender) Tripped() bool {
	return s.machine.Current() != StateArmed
}

// onEvent records the latest channel value and wakes the run loop. Monitor
// callbacks never block, so the level is coalesced: only the most recent
// value matters.
func (s *Suspender) onEvent(v pv.Value) {
	s.latestMu.Lock()
	s.latest = v
	s.latestMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// loop is the supervised task body; one call handles one wakeup.
func (s *Suspender) loop() bool {
	var rearmC <-chan time.Time
	if s.rearmTimer != nil {
		rearmC = s.rearmTimer.C
	}

	select {
	case <-s.ctx.Done():
		s.dropRearmTimer()
		return false

	case <-s.notify:
		s.evaluate()

	case <-rearmC:
		// fired timers go back to the pool without Stop draining
		timer := s.rearmTimer
		s.rearmTimer = nil
		pool.PutTimer(timer)

		if err := s.machine.Event(s.ctx, eventRearm); err != nil {
			s.logger.Error("rearm transition failed", "error", err)
		}
	}

	return true
}

// evaluate maps the latest channel level onto a machine transition.
func (s *Suspender) evaluate() {
	s.latestMu.Lock()
	v := s.latest
	s.latestMu.Unlock()

	tripped := s.trip(v)

	switch s.machine.Current() {
	case StateArmed:
		if tripped {
			s.fire(eventTrip, v)
		}

	case StateRecovering:
		if tripped {
			s.dropRearmTimer()
			s.fire(eventTrip, v)
		}

	case StateTripped:
		if !tripped {
			s.fire(eventClear, v)
		}
	}
}

func (s *Suspender) fire(event string, v pv.Value) {
	if err := s.machine.Event(s.ctx, event, v); err != nil {
		s.logger.Error("state transition failed", "event", event, "error", err)
	}
}

func (s *Suspender) dropRearmTimer() {
	if s.rearmTimer == nil {
		return
	}

	pool.PutTimer(s.rearmTimer)
	s.rearmTimer = nil
}

// onTripped stops every registered device. A re-trip out of recovering skips
// the stops: the devices were never resumed.
func (s *Suspender) onTripped(ctx context.Context, e *fsm.Event) {
	s.logger.Warn("condition tripped, suspending devices", "from", e.Src)

	if e.Src == StateRecovering {
		return
	}

	for _, dev := range s.snapshotDevices() {
		if err := dev.Stop(ctx); err != nil {
			s.logger.Error("failed to stop device", "device", dev.Name(), "error", err)
		}
	}
}

// onRecovering schedules the rearm after the recovery delay.
func (s *Suspender) onRecovering(ctx context.Context, e *fsm.Event) {
	s.logger.Info("condition cleared, waiting out recovery delay",
		"recoveryDelay", s.recoveryDelay)

	s.rearmTimer = pool.GetTimer(s.recoveryDelay)
}

// onArmed resumes every registered device.
func (s *Suspender) onArmed(ctx context.Context, e *fsm.Event) {
	s.logger.Info("recovery complete, resuming devices")

	for _, dev := range s.snapshotDevices() {
		if err := dev.Resume(ctx); err != nil {
			s.logger.Error("failed to resume device", "device", dev.Name(), "error", err)
		}
	}
}

func (s *Suspender) snapshotDevices() []Stoppable {
	s.devMu.Lock()
	defer s.devMu.Unlock()

	return append([]Stoppable(nil), s.devices...)
}
