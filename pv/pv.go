// Package pv defines the process-variable abstractions that go-beamline
// components are written against: a named control-system channel that can be
// read, written, and monitored, and a provider that resolves channel names.
//
// The package contains interfaces only. The real beamline binds them to a
// Channel Access client; tests and soak rigs bind them to the in-process
// pvsim provider. Components written against pv must tolerate the
// control-system delivery model: writes are best-effort (delivery to the
// field device is not guaranteed), and monitor events arrive asynchronously
// on a goroutine owned by the provider.
package pv

import "time"

// Value is a single sample of a process variable.
type Value struct {
	// Raw is the value as transported; for enum channels it is the index
	// into the channel's enum label table.
	Raw int32
	// Label is the provider-decoded enum label. Providers that do not carry
	// enum metadata leave it empty; code that needs the label must decode
	// Raw through EnumLabels instead of relying on this field.
	Label string
	// Time is the control-system event timestamp, in beamline-local time.
	Time time.Time
}

// MonitorFunc receives monitor events for a subscribed channel. It is
// invoked on a goroutine owned by the provider and must not block; events
// for a single channel are delivered sequentially, in posting order.
type MonitorFunc func(v Value)

// Subscription identifies one active monitor subscription on a Channel.
type Subscription uint64

// Channel is a single named control-system process variable.
//
// Subscribe registers fn for subsequent monitor events only; no initial
// event is delivered. Callers that need the current value read it after
// subscribing. Every accepted write posts a monitor event to all
// subscribers, even when the written value equals the stored one.
type Channel interface {
	// Name returns the full channel name.
	Name() string
	// Read returns the current value.
	Read() (Value, error)
	// Write sends a raw value toward the field device. A nil error means
	// the control system accepted the write, not that the device acted on
	// it.
	Write(raw int32) error
	// EnumLabels returns the channel's enum label table in index order, or
	// ErrNoEnumLabels when the channel carries no enum metadata.
	EnumLabels() ([]string, error)
	// Subscribe registers fn for monitor events.
	Subscribe(fn MonitorFunc) (Subscription, error)
	// Unsubscribe cancels a subscription. After it returns, fn may still
	// receive events already in flight, but no new ones.
	Unsubscribe(sub Subscription) error
}

// Provider resolves channel names into Channels. Resolution happens once,
// at device-construction time; the returned Channel is used for the life of
// the process.
type Provider interface {
	Channel(name string) (Channel, error)
}
