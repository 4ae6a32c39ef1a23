package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/arloliu/go-beamline/internal/task"
	"github.com/arloliu/go-beamline/logger"
)

const (
	// DefaultChannel is the pub/sub channel metadata invalidations are
	// published on.
	DefaultChannel = "runengine-metadata"
	// DefaultBlobKey is the Redis key the local metadata blob is stored under.
	DefaultBlobKey = "runengine-metadata-blob"
)

var (
	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("metadata: dict is closed")

	// ErrValueType is returned by Set when the value does not match the
	// ValueType declared for a global key.
	ErrValueType = errors.New("metadata: wrong value type for global key")

	// ErrDeleteGlobalKey is returned by Delete for facility-global keys, which
	// exist at every beamline and can only be overwritten.
	ErrDeleteGlobalKey = errors.New("metadata: global keys can't be deleted")

	// ErrKeyNotFound is returned by Delete when the key holds no value.
	ErrKeyNotFound = errors.New("metadata: key not found")
)

// ValueType declares how a facility-global key is decoded from its Redis
// string representation.
type ValueType int

const (
	// StringValue keys decode as string.
	StringValue ValueType = iota
	// IntValue keys decode as int64.
	IntValue
	// FloatValue keys decode as float64.
	FloatValue
)

func (t ValueType) String() string {
	switch t {
	case IntValue:
		return "int"
	case FloatValue:
		return "float"
	default:
		return "string"
	}
}

// DefaultGlobalKeys returns the facility-global keys present at every
// beamline, with scan_id declared as an integer.
func DefaultGlobalKeys() map[string]ValueType {
	return map[string]ValueType{
		"proposal_id":  StringValue,
		"data_session": StringValue,
		"cycle":        StringValue,
		"saf_id":       StringValue,
		"scan_id":      IntValue,
	}
}

// Option configures a RedisDict before it connects.
type Option func(*RedisDict)

// WithDB selects the Redis logical database. The default is 0.
func WithDB(db int) Option {
	return func(d *RedisDict) { d.db = db }
}

// WithPassword sets the Redis AUTH password. The default is no password.
func WithPassword(password string) Option {
	return func(d *RedisDict) { d.password = password }
}

// WithChannel sets the pub/sub channel invalidations are published on.
// Instances sharing metadata must use the same channel. The default is
// DefaultChannel.
func WithChannel(name string) Option {
	return func(d *RedisDict) { d.channel = name }
}

// WithBlobKey sets the Redis key the local metadata blob is stored under.
// The default is DefaultBlobKey.
func WithBlobKey(key string) Option {
	return func(d *RedisDict) { d.blobKey = key }
}

// WithGlobalKeys replaces the facility-global key table. Keys absent from the
// table are treated as beamline-local.
func WithGlobalKeys(keys map[string]ValueType) Option {
	return func(d *RedisDict) { d.globalTypes = keys }
}

// WithLogger sets the logger. The default is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return func(d *RedisDict) { d.logger = l }
}

// WithClient supplies an existing Redis client instead of dialing one from
// the address passed to Open. The caller keeps ownership; Close leaves the
// client open.
func WithClient(client *redis.Client) Option {
	return func(d *RedisDict) { d.client = client }
}

// RedisDict is a metadata dictionary shared between beamline processes
// through a Redis server.
//
// All methods are safe for concurrent use. Get and Snapshot read the
// in-process cache; Set and Delete write through to Redis and publish an
// invalidation so other instances refresh.
type RedisDict struct {
	db       int
	password string
	channel  string
	blobKey  string
	id       string
	logger   logger.Logger

	client     *redis.Client
	ownsClient bool
	pubsub     *redis.PubSub
	taskMgr    *task.Manager

	globalTypes map[string]ValueType

	// writeMu serializes mutations end to end so concurrent Sets can't write
	// the local blob out of order.
	writeMu sync.Mutex
	// mu guards the caches against the invalidation listener.
	mu       sync.RWMutex
	globalMD map[string]any
	localMD  map[string]any

	closed atomic.Bool
}

// Open connects to the Redis server at addr, loads the current metadata and
// starts the invalidation listener.
//
// ctx bounds the initial synchronization and supervises the listener; cancel
// it only to tear the dict down.
func Open(ctx context.Context, addr string, opts ...Option) (*RedisDict, error) {
	d := &RedisDict{
		channel:     DefaultChannel,
		blobKey:     DefaultBlobKey,
		id:          uuid.NewString(),
		logger:      logger.GetLogger(),
		globalTypes: DefaultGlobalKeys(),
		globalMD:    make(map[string]any),
		localMD:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With("channel", d.channel)

	if d.client == nil {
		if addr == "" {
			return nil, errors.New("metadata: redis address is empty")
		}
		d.client = redis.NewClient(&redis.Options{Addr: addr, Password: d.password, DB: d.db})
		d.ownsClient = true
	}

	if err := d.client.Ping(ctx).Err(); err != nil {
		d.closeClient()
		return nil, fmt.Errorf("metadata: ping redis: %w", err)
	}

	if err := d.syncFromServer(ctx); err != nil {
		d.closeClient()
		return nil, err
	}

	d.pubsub = d.client.Subscribe(ctx, d.channel)
	if _, err := d.pubsub.Receive(ctx); err != nil {
		_ = d.pubsub.Close()
		d.closeClient()
		return nil, fmt.Errorf("metadata: subscribe %s: %w", d.channel, err)
	}

	d.taskMgr = task.NewManager(ctx, d.logger)
	if err := d.taskMgr.Start("metadata-listener", d.listen); err != nil {
		_ = d.pubsub.Close()
		d.closeClient()
		return nil, err
	}

	return d, nil
}

// syncFromServer replaces both caches with the server state. Missing local
// metadata is initialized to an empty blob so other instances can read it.
func (d *RedisDict) syncFromServer(ctx context.Context) error {
	local, found, err := d.loadLocal(ctx)
	if err != nil {
		return err
	}

	global := make(map[string]any, len(d.globalTypes))
	for key := range d.globalTypes {
		value, ok, err := d.loadGlobal(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			d.logger.Info("no value yet for global key", "key", key)
			continue
		}
		global[key] = value
	}

	d.mu.Lock()
	d.localMD = local
	d.globalMD = global
	d.mu.Unlock()

	if !found {
		d.logger.Info("no local metadata found in redis")
		if err := d.storeLocal(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the cached value for key. The local value shadows the global
// one when both exist.
func (d *RedisDict) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if value, ok := d.localMD[key]; ok {
		return value, true
	}
	value, ok := d.globalMD[key]

	return value, ok
}

// Snapshot returns a copy of the merged metadata, local values shadowing
// global ones.
func (d *RedisDict) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	merged := make(map[string]any, len(d.globalMD)+len(d.localMD))
	for key, value := range d.globalMD {
		merged[key] = value
	}
	for key, value := range d.localMD {
		merged[key] = value
	}

	return merged
}

// Set stores a key-value pair and publishes an invalidation.
//
// Keys declared in the global table are written as plain Redis strings after
// a type check against their ValueType. All other keys land in the local
// blob and accept any JSON-marshalable value.
func (d *RedisDict) Set(ctx context.Context, key string, value any) error {
	if d.closed.Load() {
		return ErrClosed
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if vt, ok := d.globalTypes[key]; ok {
		cached, wire, err := encodeGlobal(key, vt, value)
		if err != nil {
			return err
		}
		if err := d.client.Set(ctx, key, wire, 0).Err(); err != nil {
			return fmt.Errorf("metadata: set global key %q: %w", key, err)
		}
		d.mu.Lock()
		d.globalMD[key] = cached
		d.mu.Unlock()
	} else {
		d.mu.Lock()
		d.localMD[key] = value
		blob, err := json.Marshal(d.localMD)
		d.mu.Unlock()
		if err != nil {
			return fmt.Errorf("metadata: marshal local metadata: %w", err)
		}
		if err := d.setBlob(ctx, blob); err != nil {
			return err
		}
	}

	return d.publish(ctx, key)
}

// Delete removes a local key and publishes an invalidation. Global keys
// can't be deleted.
func (d *RedisDict) Delete(ctx context.Context, key string) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if _, ok := d.globalTypes[key]; ok {
		return fmt.Errorf("%w: %s", ErrDeleteGlobalKey, key)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	if _, ok := d.localMD[key]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	delete(d.localMD, key)
	blob, err := json.Marshal(d.localMD)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("metadata: marshal local metadata: %w", err)
	}

	if err := d.setBlob(ctx, blob); err != nil {
		return err
	}

	return d.publish(ctx, key)
}

// Close stops the invalidation listener and releases the connection. The
// cache stays readable through Get and Snapshot.
func (d *RedisDict) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	// cancel first so the unblocked listener doesn't treat the closed
	// subscription as a lost connection
	d.taskMgr.Stop()
	err := d.pubsub.Close()
	d.taskMgr.Wait()

	if cerr := d.closeClient(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}

// GetLogger returns the logger instance of the dict.
func (d *RedisDict) GetLogger() logger.Logger {
	return d.logger
}

func (d *RedisDict) closeClient() error {
	if !d.ownsClient {
		return nil
	}
	return d.client.Close()
}

func (d *RedisDict) publish(ctx context.Context, key string) error {
	if err := d.client.Publish(ctx, d.channel, d.id+"/"+key).Err(); err != nil {
		return fmt.Errorf("metadata: publish update for %q: %w", key, err)
	}

	return nil
}

// loadLocal fetches and decodes the local metadata blob. A missing blob
// yields an empty map with found=false.
func (d *RedisDict) loadLocal(ctx context.Context) (map[string]any, bool, error) {
	blob, err := d.client.Get(ctx, d.blobKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return make(map[string]any), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metadata: get local metadata blob: %w", err)
	}

	local, err := unmarshalLocal(blob)
	if err != nil {
		return nil, false, fmt.Errorf("metadata: unmarshal local metadata blob: %w", err)
	}

	return local, true, nil
}

// storeLocal writes the current local metadata map as one JSON blob.
func (d *RedisDict) storeLocal(ctx context.Context) error {
	d.mu.RLock()
	blob, err := json.Marshal(d.localMD)
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("metadata: marshal local metadata: %w", err)
	}

	return d.setBlob(ctx, blob)
}

func (d *RedisDict) setBlob(ctx context.Context, blob []byte) error {
	if err := d.client.Set(ctx, d.blobKey, blob, 0).Err(); err != nil {
		return fmt.Errorf("metadata: set local metadata blob: %w", err)
	}

	return nil
}

// loadGlobal fetches one global key and decodes it per the key table.
func (d *RedisDict) loadGlobal(ctx context.Context, key string) (any, bool, error) {
	wire, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metadata: get global key %q: %w", key, err)
	}

	value, err := decodeGlobal(key, d.globalTypes[key], wire)
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

func encodeGlobal(key string, vt ValueType, value any) (cached any, wire string, err error) {
	switch vt {
	case IntValue:
		switch n := value.(type) {
		case int:
			return int64(n), strconv.FormatInt(int64(n), 10), nil
		case int32:
			return int64(n), strconv.FormatInt(int64(n), 10), nil
		case int64:
			return n, strconv.FormatInt(n, 10), nil
		}
	case FloatValue:
		switch f := value.(type) {
		case float32:
			return float64(f), strconv.FormatFloat(float64(f), 'g', -1, 64), nil
		case float64:
			return f, strconv.FormatFloat(f, 'g', -1, 64), nil
		}
	default:
		if s, ok := value.(string); ok {
			return s, s, nil
		}
	}

	return nil, "", fmt.Errorf("%w: key %q expects %s, got %T", ErrValueType, key, vt, value)
}

func decodeGlobal(key string, vt ValueType, wire string) (any, error) {
	switch vt {
	case IntValue:
		n, err := strconv.ParseInt(wire, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("metadata: decode global key %q: %w", key, err)
		}
		return n, nil
	case FloatValue:
		f, err := strconv.ParseFloat(wire, 64)
		if err != nil {
			return nil, fmt.Errorf("metadata: decode global key %q: %w", key, err)
		}
		return f, nil
	default:
		return wire, nil
	}
}

// unmarshalLocal decodes the blob keeping integers as int64 rather than
// collapsing every number to float64.
func unmarshalLocal(blob []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()

	var local map[string]any
	if err := dec.Decode(&local); err != nil {
		return nil, err
	}
	if local == nil {
		local = make(map[string]any)
	}
	for key, value := range local {
		local[key] = normalizeNumbers(value)
	}

	return local, nil
}

func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalizeNumbers(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeNumbers(v[k])
		}
		return v
	default:
		return value
	}
}
