package pvsim

import "errors"

var (
	// ErrReadOnly indicates a client write to a read-only PV.
	ErrReadOnly = errors.New("pvsim: pv is read-only")
	// ErrDuplicatePV indicates a PV name already registered with the provider.
	ErrDuplicatePV = errors.New("pvsim: pv already registered")
	// ErrWriteRejected indicates the PV's putter refused the written value.
	ErrWriteRejected = errors.New("pvsim: write rejected")
)
