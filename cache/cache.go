package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Namespaces in use. The full Redis key is always "<namespace>:<key>";
// the namespace is mandatory at every call site so a project id and a
// task id can never collide.
const (
	NamespaceProject  = "project"
	NamespaceProjects = "projects"
	NamespaceTask     = "task"
	NamespaceTasks    = "tasks"
)

// Key is a fully qualified cache key.
type Key struct {
	Namespace string
	Key       string
}

func (k Key) full() string {
	return k.Namespace + ":" + k.Key
}

// Cache is a namespaced cache-aside client. Entries are derived data
// only, always reconstructible from the relational store, so every
// failure here degrades: reads fall through to the authoritative
// compute, writes become logged no-ops. No error from the backing store
// ever propagates to callers of the read path.
type Cache struct {
	rdb      redis.UniversalClient
	log      zerolog.Logger
	maxTries uint
}

// New creates a Cache. maxTries bounds the retry loop used for
// mutation-path invalidation; zero selects the default of 3.
func New(rdb redis.UniversalClient, log zerolog.Logger, maxTries uint) *Cache {
	if maxTries == 0 {
		maxTries = 3
	}
	return &Cache{rdb: rdb, log: log, maxTries: maxTries}
}

// GetOrSet returns the cached value at ns:key, or invokes compute, writes
// the result back best-effort, and returns it. compute runs against the
// authoritative store; a cache write failure must never fail the read.
func GetOrSet[T any](ctx context.Context, c *Cache, ns, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	full := Key{Namespace: ns, Key: key}.full()

	data, err := c.rdb.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(data, &v); jsonErr == nil {
			return v, nil
		}
		c.log.Warn().Str("key", full).Msg("cache entry undecodable, recomputing")
	case !isMiss(err):
		c.log.Warn().Err(err).Str("key", full).Msg("cache read failed, computing from source")
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	Set(ctx, c, ns, key, v, ttl)
	return v, nil
}

// Set unconditionally writes ns:key. Used after a mutation to
// pre-populate the now-current value so the next read is a hit rather
// than a forced miss. Failures are logged and swallowed.
func Set[T any](ctx context.Context, c *Cache, ns, key string, value T, ttl time.Duration) {
	full := Key{Namespace: ns, Key: key}.full()

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", full).Msg("cache value not serializable")
		return
	}
	if err := c.rdb.Set(ctx, full, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", full).Msg("cache write failed")
	}
}

// Invalidate deletes keys within a single namespace in one round trip.
func (c *Cache) Invalidate(ctx context.Context, ns string, keys ...string) error {
	qualified := make([]Key, len(keys))
	for i, k := range keys {
		qualified[i] = Key{Namespace: ns, Key: k}
	}
	return c.InvalidateKeys(ctx, qualified...)
}

// InvalidateKeys deletes fully qualified keys, batched into a single DEL.
// Unlike read-path writes this runs on the mutation path and must
// complete: the delete is retried with bounded exponential backoff, and
// only after exhausting retries is the failure reported to the caller.
func (c *Cache) InvalidateKeys(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		f := k.full()
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		full = append(full, f)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.rdb.Del(ctx, full...).Err()
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		c.log.Warn().Err(err).Strs("keys", full).Msg("cache invalidation failed after retries")
		return err
	}
	return nil
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
