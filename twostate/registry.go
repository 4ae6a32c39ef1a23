package twostate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is a concurrency-safe collection of actuators keyed by name.
//
// A beamline typically constructs all of its actuators at startup and
// registers them in one Registry so that operator tooling can look devices
// up by name and facility-wide sweeps can stop or resume everything at once.
type Registry struct {
	acts *xsync.MapOf[string, *Actuator]
}

// NewRegistry creates an empty actuator registry.
func NewRegistry() *Registry {
	return &Registry{acts: xsync.NewMapOf[string, *Actuator]()}
}

// Register adds an actuator under its configured name.
//
// It returns ErrDuplicateActuator when an actuator with the same name is
// already registered.
func (r *Registry) Register(act *Actuator) error {
	if act == nil {
		return errors.New("twostate: actuator is nil")
	}

	if _, loaded := r.acts.LoadOrStore(act.Name(), act); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateActuator, act.Name())
	}

	return nil
}

// Lookup returns the actuator registered under name.
func (r *Registry) Lookup(name string) (*Actuator, bool) {
	return r.acts.Load(name)
}

// Remove deletes the actuator registered under name and reports whether it
// was present.
func (r *Registry) Remove(name string) bool {
	_, loaded := r.acts.LoadAndDelete(name)
	return loaded
}

// Names returns the names of all registered actuators in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.acts.Size())
	r.acts.Range(func(name string, _ *Actuator) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	return names
}

// Range calls fn for each registered actuator until fn returns false.
func (r *Registry) Range(fn func(act *Actuator) bool) {
	r.acts.Range(func(_ string, act *Actuator) bool {
		return fn(act)
	})
}

// Size returns the number of registered actuators.
func (r *Registry) Size() int {
	return r.acts.Size()
}

// StopAll drives every registered actuator to its failsafe state in name
// order, recording each one's restore target.
//
// A failing device does not abort the sweep; the errors are joined and
// returned after every actuator has been attempted.
func (r *Registry) StopAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		act, ok := r.Lookup(name)
		if !ok {
			continue
		}
		if err := act.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("twostate: stop %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// ResumeAll restores every registered actuator to the state recorded by the
// preceding StopAll, in name order.
//
// A failing device does not abort the sweep; the errors are joined and
// returned after every actuator has been attempted.
func (r *Registry) ResumeAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		act, ok := r.Lookup(name)
		if !ok {
			continue
		}
		if err := act.Resume(ctx); err != nil {
			errs = append(errs, fmt.Errorf("twostate: resume %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
