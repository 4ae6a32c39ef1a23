// Package suspend reacts to facility interlock and beam-quality channels by
// stopping beamline devices and resuming them after the condition clears.
//
// A Suspender watches one channel through a trip predicate and drives a
// three-state machine:
//
//	armed ──trip──▶ tripped ──clear──▶ recovering ──rearm──▶ armed
//	                   ▲                    │
//	                   └───────trip─────────┘
//
// Entering tripped calls Stop on every registered device; the rearm
// transition fires after the recovery delay elapses without a re-trip and
// calls Resume. A re-trip during recovery returns to tripped without
// resuming, and without stopping again since the devices were never resumed.
//
// Blocking device calls run on the suspender's own supervised goroutine,
// never on the channel monitor callback.
//
// Usage:
//
//	beamCurrent, _ := provider.Channel("SR:C03-BI{DCCT:1}I:Real-I")
//	susp, err := suspend.New(beamCurrent, suspend.TripBelow(300),
//		suspend.WithName("ring current"),
//		suspend.WithRecoveryDelay(10*time.Minute),
//	)
//	if err != nil {
//		// handle error
//	}
//	susp.Register(shutter, gateValve)
//
//	if err := susp.Start(ctx); err != nil {
//		// handle error
//	}
//	defer susp.Close()
package suspend
