package pv

import "errors"

var (
	// ErrChannelNotFound indicates the provider has no channel with the
	// requested name.
	ErrChannelNotFound = errors.New("pv: channel not found")
	// ErrNoEnumLabels indicates the channel carries no enum metadata.
	ErrNoEnumLabels = errors.New("pv: channel has no enum labels")
	// ErrLabelIndex indicates a raw value that does not index the channel's
	// enum label table.
	ErrLabelIndex = errors.New("pv: raw value outside enum label table")
	// ErrUnknownLabel indicates a label that does not appear in the
	// channel's enum label table.
	ErrUnknownLabel = errors.New("pv: label not in enum label table")
)
