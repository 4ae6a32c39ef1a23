// Package metadata synchronizes run-engine metadata across beamline processes
// through a shared Redis server.
//
// A RedisDict manages two kinds of key-value pairs:
//
//   - Facility-global keys (proposal_id, data_session, cycle, saf_id, scan_id
//     by default) are stored as plain Redis strings so any Redis client at the
//     facility can read and write them. Redis only stores strings, so each
//     global key carries a declared ValueType used to decode it.
//   - Beamline-local keys are marshaled together into a single JSON blob under
//     one Redis key. They round-trip arbitrary JSON values but are not
//     readable as individual Redis keys.
//
// Every mutation publishes an invalidation message on a Redis pub/sub channel
// so other RedisDict instances refresh their caches. Messages carry the
// publishing instance's UUID; an instance ignores its own messages. A
// supervised listener goroutine receives the messages and re-reads the
// affected keys from the server, reconnecting with exponential backoff when
// the subscription drops.
//
// Reads are served from the in-process cache. On a key collision the local
// value shadows the global one.
//
// Usage:
//
//	dict, err := metadata.Open(ctx, "localhost:6379")
//	if err != nil {
//		return err
//	}
//	defer dict.Close()
//
//	if err := dict.Set(ctx, "scan_id", int64(42)); err != nil {
//		return err
//	}
//	if err := dict.Set(ctx, "sample", "kryptonite"); err != nil {
//		return err
//	}
//
//	scanID, ok := dict.Get("scan_id")
package metadata
