// Package twostate drives two-state beamline equipment protection devices
// such as photon shutters, gate valves, and pneumatic inserts over their
// control-system channels.
//
// These devices share one wiring pattern: a command channel per state that
// accepts activation writes and acknowledges them, a readback channel that
// reports the stable position, a fail indicator per state, and an optional
// facility enable channel. The underlying hardware regularly drops activation
// writes, so the package watches the acknowledgment channel and re-issues the
// command until the readback reaches the target or the retry budget runs out.
//
// Key Features:
//   - Asynchronous Set operations resolving a status.Status completion handle.
//   - Bounded retries of dropped commands with a configurable delay.
//   - Facility enable gating before every activation write.
//   - Blocking Stop/Resume helpers for interlock and suspension handlers.
//   - Per-actuator metrics with an optional prometheus collector.
//
// Device Presets:
// NewPhotonShutter, NewGateValve, and NewPneumaticActuator construct
// actuators with the state labels, channel UIDs, and retry budgets the
// corresponding facility devices use.
//
// Usage:
//
//	cfg, err := twostate.NewConfig("XF:31ID-EPS{Sh:FE}", "front-end shutter",
//		twostate.WithMaxRetries(5),
//		twostate.WithRetryDelay(500*time.Millisecond),
//	)
//	if err != nil {
//		// handle error
//	}
//
//	act, err := twostate.NewActuator(ctx, provider, cfg)
//	if err != nil {
//		// handle error
//	}
//
//	st, err := act.Set("Open")
//	if err != nil {
//		// handle error
//	}
//	if err := st.Wait(ctx); err != nil {
//		// the move failed or ctx expired
//	}
//
// Set never blocks on device motion; it returns the handle immediately and
// the move resolves through it. Stop and Resume block until the device
// settles and are meant for callers that are allowed to block, such as
// suspension handlers.
package twostate
