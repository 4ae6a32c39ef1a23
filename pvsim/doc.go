// Package pvsim provides an in-process process-variable provider used for
// testing and development of go-beamline device code without a live control
// system.
//
// Key Features:
//   - Provider: a concurrent PV registry implementing pv.Provider.
//   - PV: enum or plain-integer process variables with control-system monitor
//     semantics: every accepted write posts an event to all subscribers,
//     even when the written value equals the stored one.
//   - Putter hooks: a PV can intercept writes and decide the stored value,
//     which is how device models are built.
//   - TwoStateIOC: a simulated EPS two-state device (photon shutters, gate
//     valves, pneumatic actuators) with the known failure modes of the real
//     hardware: commands that need several attempts before the device acts,
//     a hardware error that latches the command without motion, a position
//     status error that moves without a readback update, and a facility
//     enable signal that forbids motion entirely.
//
// Usage:
//
//	provider := pvsim.NewProvider()
//	ioc := pvsim.NewTwoStateIOC("XF:31ID-EPS{Sh:FE}", pvsim.WithRequiredAttempts(2))
//	ioc.Install(provider)
//
//	ch, _ := provider.Channel("XF:31ID-EPS{Sh:FE}Pos-Sts")
//	val, _ := ch.Read() // -> {Raw: 0, Label: "Open"}
//
// Event delivery is synchronous: a write returns after all monitor callbacks
// it triggered have run. Tests therefore observe deterministic event
// ordering. Callbacks must not write back into the channel that is
// notifying them.
package pvsim
