package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// listen is the body of the supervised invalidation listener. It receives one
// message per call; the task manager loops it until it returns false.
func (d *RedisDict) listen() bool {
	ctx := d.taskMgr.Context()

	msg, err := d.pubsub.ReceiveMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		d.logger.Warn("metadata subscription lost", "error", err)

		return d.reconnect(ctx)
	}

	d.handleUpdate(ctx, msg.Payload)

	return true
}

// reconnect pings the subscription with exponential backoff until it answers
// again, then re-reads everything that may have changed while messages were
// being missed.
func (d *RedisDict) reconnect(ctx context.Context) bool {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	ping := func() error {
		return d.pubsub.Ping(ctx)
	}
	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		return false
	}

	d.writeMu.Lock()
	err := d.syncFromServer(ctx)
	d.writeMu.Unlock()
	if err != nil {
		d.logger.Warn("metadata re-sync after reconnect failed", "error", err)
	} else {
		d.logger.Info("metadata subscription restored")
	}

	return true
}

// handleUpdate refreshes the cache for one invalidation message.
func (d *RedisDict) handleUpdate(ctx context.Context, payload string) {
	id, key, err := parseUpdate(payload)
	if err != nil {
		d.logger.Warn("discarding malformed metadata update", "payload", payload, "error", err)
		return
	}
	if id == d.id {
		// this instance published the update, the cache is already current
		return
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if _, ok := d.globalTypes[key]; ok {
		value, found, err := d.loadGlobal(ctx, key)
		if err != nil {
			d.logger.Warn("refreshing global key failed", "key", key, "error", err)
			return
		}
		d.mu.Lock()
		if found {
			d.globalMD[key] = value
		} else {
			delete(d.globalMD, key)
		}
		d.mu.Unlock()

		return
	}

	// a local key may have been added or deleted, refresh the whole blob
	local, _, err := d.loadLocal(ctx)
	if err != nil {
		d.logger.Warn("refreshing local metadata failed", "key", key, "error", err)
		return
	}
	d.mu.Lock()
	d.localMD = local
	d.mu.Unlock()
}

// parseUpdate splits an invalidation payload of the form
// "<instance-uuid>/<key>". The key may itself contain slashes.
func parseUpdate(payload string) (id, key string, err error) {
	id, key, ok := strings.Cut(payload, "/")
	if !ok || id == "" || key == "" {
		return "", "", fmt.Errorf("metadata: malformed update %q", payload)
	}

	return id, key, nil
}
